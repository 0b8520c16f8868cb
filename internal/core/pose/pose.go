package pose

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/scene"
)

// Transform is a tracked position plus Euler rotation (radians, YXZ).
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Vec3
}

// Part identifies one tracked point of an avatar.
type Part uint8

const (
	Rig Part = iota
	Head
	LeftHand
	RightHand

	PartCount = 4
)

var partNames = [PartCount]string{"RIG", "HEAD", "LEFT", "RIGHT"}

// Parts lists every tracked part in broadcast order.
var Parts = [PartCount]Part{Rig, Head, LeftHand, RightHand}

func (p Part) String() string {
	if int(p) < PartCount {
		return partNames[p]
	}
	return fmt.Sprintf("Part(%d)", uint8(p))
}

func ParsePart(s string) (Part, bool) {
	for i, name := range partNames {
		if name == s {
			return Part(i), true
		}
	}
	return 0, false
}

// Tracker yields the current local transform of a tracked object.
type Tracker interface {
	Transform() Transform
}

// NodeTracker samples a scene node's local position and YXZ rotation.
type NodeTracker struct {
	Node *scene.Node
}

func (t NodeTracker) Transform() Transform {
	return Transform{
		Position: t.Node.Position,
		Rotation: t.Node.Euler(scene.OrderYXZ).Vec3(),
	}
}

// TrackerFunc adapts a function to Tracker.
type TrackerFunc func() Transform

func (f TrackerFunc) Transform() Transform { return f() }
