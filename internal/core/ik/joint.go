package ik

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/scene"
)

// JointSpec is one solvable joint of a chain.
type JointSpec struct {
	Node          *scene.Node
	RotationOrder scene.RotationOrder
	RotationMin   mgl64.Vec3
	RotationMax   mgl64.Vec3
	// TwistLocked joints take their Y rotation from the effector instead of
	// solving it.
	TwistLocked bool
}

func (j *JointSpec) Validate() error {
	for i := 0; i < 3; i++ {
		if j.RotationMin[i] > j.RotationMax[i] {
			return fmt.Errorf("%w: axis %d of %q", ErrInvalidLimits, i, j.Node.Name)
		}
	}
	return nil
}

// Limits is the node-independent part of a JointSpec.
type Limits struct {
	Order scene.RotationOrder
	Min   mgl64.Vec3
	Max   mgl64.Vec3
}

func (l Limits) Spec(node *scene.Node, twistLocked bool) *JointSpec {
	return &JointSpec{
		Node:          node,
		RotationOrder: l.Order,
		RotationMin:   l.Min,
		RotationMax:   l.Max,
		TwistLocked:   twistLocked,
	}
}

var (
	fullTurn    = mgl64.Vec3{math.Pi, math.Pi, math.Pi}
	quarterTurn = mgl64.Vec3{math.Pi / 2, math.Pi / 2, math.Pi / 2}
)

// JointSettings holds base and elbow limits per chain kind. Elbow yaw bounds
// are effectively open because elbows are twist-locked; knees bend one way.
var JointSettings = [KindCount][2]Limits{
	KindHead: {
		{Order: scene.OrderXYZ, Min: fullTurn.Mul(-1), Max: fullTurn},
		{Order: scene.OrderXYZ, Min: fullTurn.Mul(-1), Max: fullTurn},
	},
	KindLeftArm: {
		{Order: scene.OrderZXY, Min: quarterTurn.Mul(-1), Max: quarterTurn},
		{Order: scene.OrderXZY, Min: mgl64.Vec3{0, -1000, 0}, Max: mgl64.Vec3{math.Pi, 1000, math.Pi}},
	},
	KindRightArm: {
		{Order: scene.OrderZXY, Min: quarterTurn.Mul(-1), Max: quarterTurn},
		{Order: scene.OrderXZY, Min: mgl64.Vec3{0, -1000, -math.Pi}, Max: mgl64.Vec3{math.Pi, 1000, 0}},
	},
	KindLeftLeg: {
		{Order: scene.OrderXYZ, Min: fullTurn.Mul(-1), Max: fullTurn},
		{Order: scene.OrderXYZ, Min: mgl64.Vec3{-math.Pi, 0, 0}, Max: mgl64.Vec3{0, 0, 0}},
	},
	KindRightLeg: {
		{Order: scene.OrderXYZ, Min: fullTurn.Mul(-1), Max: fullTurn},
		{Order: scene.OrderXYZ, Min: mgl64.Vec3{-math.Pi, 0, 0}, Max: mgl64.Vec3{0, 0, 0}},
	},
}
