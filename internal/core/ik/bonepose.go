package ik

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/scene"
)

// BonePose is the manager-owned transform of a directly driven bone (root,
// hips). Solvers write here; Sync copies the value onto the scene node.
type BonePose struct {
	Node     *scene.Node
	Position mgl64.Vec3
	Rotation scene.Euler
}

// NewBonePose captures the node's current local transform.
func NewBonePose(node *scene.Node) *BonePose {
	return &BonePose{
		Node:     node,
		Position: node.Position,
		Rotation: node.Euler(scene.OrderXYZ),
	}
}

func (p *BonePose) Sync() {
	if p == nil || p.Node == nil {
		return
	}
	p.Node.Position = p.Position
	p.Node.Quaternion = p.Rotation.Quat()
}
