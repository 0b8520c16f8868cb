// Package skeletontest builds small humanoid node trees for tests.
package skeletontest

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/scene"
)

// Options tweaks the generated biped.
type Options struct {
	// Mirrored places the left limbs on +X instead of -X.
	Mirrored bool
	// NoLegs omits both leg chains.
	NoLegs bool
}

// Biped returns a wrapper node holding a T-posed biped:
//
//	Avatar > Root > Hips > Spine > Chest > Neck > Head
//	                               Chest > {Left,Right}Shoulder > UpperArm > LowerArm > Hand
//	                Hips > {Left,Right}UpperLeg > LowerLeg > Foot
//
// Hips sit at 1.0, the head at 1.6 and the shoulders at 1.4.
func Biped(opts Options) *scene.Node {
	side := -1.0
	if opts.Mirrored {
		side = 1
	}

	wrapper := scene.NewNode("Avatar")
	root := add(wrapper, "Root", 0, 0, 0)
	hips := add(root, "Hips", 0, 1.0, 0)
	spine := add(hips, "Spine", 0, 0.1, 0)
	chest := add(spine, "Chest", 0, 0.15, 0)
	neck := add(chest, "Neck", 0, 0.2, 0)
	head := add(neck, "Head", 0, 0.15, 0)
	add(head, "LeftEye", side*0.03, 0.05, -0.08)
	add(head, "RightEye", -side*0.03, 0.05, -0.08)
	add(head, "HeadTop_End", 0, 0.12, 0)

	for _, s := range []struct {
		prefix string
		x      float64
	}{{"Left", side}, {"Right", -side}} {
		shoulder := add(chest, s.prefix+"Shoulder", s.x*0.05, 0.15, 0)
		upper := add(shoulder, s.prefix+"UpperArm", s.x*0.15, 0, 0)
		lower := add(upper, s.prefix+"LowerArm", s.x*0.26, 0, 0)
		add(lower, s.prefix+"Hand", s.x*0.24, 0, 0)

		if !opts.NoLegs {
			thigh := add(hips, s.prefix+"UpperLeg", s.x*0.1, -0.05, 0)
			shin := add(thigh, s.prefix+"LowerLeg", 0, -0.45, 0)
			add(shin, s.prefix+"Foot", 0, -0.45, 0)
		}
	}
	return wrapper
}

func add(parent *scene.Node, name string, x, y, z float64) *scene.Node {
	n := scene.NewNode(name)
	n.Position = mgl64.Vec3{x, y, z}
	parent.Add(n)
	return n
}
