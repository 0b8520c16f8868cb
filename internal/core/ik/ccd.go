package ik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/scene"
)

// AlignBoneWithGoal runs one CCD step on joint: it rotates the joint so that
// the direction towards the effector turns onto the direction towards goal,
// then re-expresses the rotation as Euler angles in the joint's order and
// clamps them. When the joint is twist-locked and lockedTwist is given, the
// Y angle is forced to *lockedTwist and the effector's own Y angle (YXZ) is
// zeroed. The Euler written to the joint is returned.
func AlignBoneWithGoal(joint *JointSpec, effector *scene.Node, goal mgl64.Vec3, lockedTwist *float64) scene.Euler {
	bone := joint.Node
	bonePos := bone.WorldPosition()
	inv := bone.WorldQuaternion().Inverse()

	toEffector, okEffector := scene.SafeNormalize(inv.Rotate(effector.WorldPosition().Sub(bonePos)))
	toGoal, okGoal := scene.SafeNormalize(inv.Rotate(goal.Sub(bonePos)))
	if okEffector && okGoal {
		// Floating drift can push the dot product past ±1; acos would return NaN.
		angle := math.Acos(mgl64.Clamp(toEffector.Dot(toGoal), -1, 1))
		if axis, ok := scene.SafeNormalize(toEffector.Cross(toGoal)); ok && angle > 1e-9 {
			bone.Quaternion = bone.Quaternion.Mul(mgl64.QuatRotate(angle, axis)).Normalize()
		}
	}

	euler := scene.EulerFromQuat(bone.Quaternion, joint.RotationOrder)
	if joint.TwistLocked && lockedTwist != nil {
		euler.Y = scene.WrapAngle(*lockedTwist)

		e := effector.Euler(scene.OrderYXZ)
		e.Y = 0
		effector.SetEuler(e)
	}
	euler = euler.Clamp(joint.RotationMin, joint.RotationMax)
	bone.Quaternion = euler.Quat()
	return euler
}
