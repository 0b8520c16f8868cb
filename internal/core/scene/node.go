package scene

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Node is a scene-graph element with a local TRS transform. World transforms
// are composed on demand from the parent chain, so writes to Position,
// Quaternion or Scale are visible immediately to descendants.
type Node struct {
	Name       string
	Position   mgl64.Vec3
	Quaternion mgl64.Quat
	Scale      mgl64.Vec3
	Visible    bool

	parent   *Node
	children []*Node
}

func NewNode(name string) *Node {
	return &Node{
		Name:       name,
		Quaternion: mgl64.QuatIdent(),
		Scale:      mgl64.Vec3{1, 1, 1},
		Visible:    true,
	}
}

func (n *Node) Parent() *Node {
	return n.parent
}

// Children returns the live child slice; callers must not modify it.
func (n *Node) Children() []*Node {
	return n.children
}

// Add reparents child under n without preserving its world transform.
func (n *Node) Add(child *Node) *Node {
	if child == nil || child == n {
		return n
	}
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
	return n
}

func (n *Node) Remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// RemoveFromParent detaches n from its parent, if any.
func (n *Node) RemoveFromParent() {
	if n.parent != nil {
		n.parent.Remove(n)
	}
}

// Attach reparents child under n keeping its world transform unchanged.
func (n *Node) Attach(child *Node) {
	local := n.WorldMatrix().Inv().Mul4(child.WorldMatrix())
	child.Position, child.Quaternion, child.Scale = Decompose(local)
	n.Add(child)
}

func (n *Node) LocalMatrix() mgl64.Mat4 {
	return Compose(n.Position, n.Quaternion, n.Scale)
}

func (n *Node) WorldMatrix() mgl64.Mat4 {
	m := n.LocalMatrix()
	for p := n.parent; p != nil; p = p.parent {
		m = p.LocalMatrix().Mul4(m)
	}
	return m
}

func (n *Node) WorldPosition() mgl64.Vec3 {
	return n.WorldMatrix().Col(3).Vec3()
}

func (n *Node) WorldQuaternion() mgl64.Quat {
	q := n.Quaternion
	for p := n.parent; p != nil; p = p.parent {
		q = p.Quaternion.Mul(q)
	}
	return q.Normalize()
}

// SetWorldQuaternion sets the local rotation so that the world rotation equals q.
func (n *Node) SetWorldQuaternion(q mgl64.Quat) {
	if n.parent == nil {
		n.Quaternion = q.Normalize()
		return
	}
	n.Quaternion = n.parent.WorldQuaternion().Inverse().Mul(q).Normalize()
}

// SetWorldPosition moves n so that its world position equals p.
func (n *Node) SetWorldPosition(p mgl64.Vec3) {
	if n.parent == nil {
		n.Position = p
		return
	}
	n.Position = n.parent.WorldMatrix().Inv().Mul4x1(p.Vec4(1)).Vec3()
}

// WorldDirection is the node's local +Z axis in world space.
func (n *Node) WorldDirection() mgl64.Vec3 {
	return n.WorldQuaternion().Rotate(Forward)
}

func (n *Node) Euler(order RotationOrder) Euler {
	return EulerFromQuat(n.Quaternion, order)
}

func (n *Node) SetEuler(e Euler) {
	n.Quaternion = e.Quat()
}

// RotateOnAxis post-multiplies the local rotation, rotating in the node's own frame.
func (n *Node) RotateOnAxis(axis mgl64.Vec3, angle float64) {
	n.Quaternion = n.Quaternion.Mul(mgl64.QuatRotate(angle, axis)).Normalize()
}

// Traverse visits n and its descendants depth-first, parents before children.
func (n *Node) Traverse(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Traverse(fn)
	}
}

// Root returns the topmost ancestor of n.
func (n *Node) Root() *Node {
	r := n
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Find returns the first descendant (or n) with the given name.
func (n *Node) Find(name string) *Node {
	if n.Name == name {
		return n
	}
	for _, c := range n.children {
		if f := c.Find(name); f != nil {
			return f
		}
	}
	return nil
}

// Clone deep-copies n and its subtree. The copy has no parent.
func (n *Node) Clone() *Node {
	c := &Node{
		Name:       n.Name,
		Position:   n.Position,
		Quaternion: n.Quaternion,
		Scale:      n.Scale,
		Visible:    n.Visible,
	}
	for _, child := range n.children {
		c.Add(child.Clone())
	}
	return c
}
