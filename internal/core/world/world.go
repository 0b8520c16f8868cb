package world

import (
	"errors"

	"github.com/zeusync/posesync/internal/core/scene"
)

type EntityID uint64

// NoEntity is never handed out by CreateEntity.
const NoEntity EntityID = 0

var ErrEntityNotFound = errors.New("entity not found")

// Context owns the scene root and the entity allocator that maps opaque
// entity handles back to scene nodes. It is passed explicitly to the
// components that need it and is not safe for concurrent use; the pose-sync
// event loop is its only writer.
type Context struct {
	scene *scene.Node
	nodes map[EntityID]*scene.Node
	next  EntityID
}

func New() *Context {
	return &Context{
		scene: scene.NewNode("scene"),
		nodes: make(map[EntityID]*scene.Node),
	}
}

// Scene is the root every avatar is attached under.
func (c *Context) Scene() *scene.Node {
	return c.scene
}

// CreateEntity allocates a handle bound to node.
func (c *Context) CreateEntity(node *scene.Node) EntityID {
	c.next++
	c.nodes[c.next] = node
	return c.next
}

func (c *Context) Node(id EntityID) (*scene.Node, bool) {
	n, ok := c.nodes[id]
	return n, ok
}

func (c *Context) DestroyEntity(id EntityID) error {
	if _, ok := c.nodes[id]; !ok {
		return ErrEntityNotFound
	}
	delete(c.nodes, id)
	return nil
}

func (c *Context) EntityCount() int {
	return len(c.nodes)
}
