package ik

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/scene"
	"github.com/zeusync/posesync/internal/core/skeleton"
	"github.com/zeusync/posesync/internal/core/skeleton/skeletontest"
)

func newManager(t *testing.T, opts skeletontest.Options) (*Manager, *skeleton.Skeleton, *scene.Node) {
	t.Helper()
	world := scene.NewNode("Scene")
	model := skeletontest.Biped(opts)
	world.Add(model)
	sk := skeleton.Map(model)
	return NewManager(sk, world), sk, model
}

func standing() TrackedInputs {
	return TrackedInputs{
		Rig:  &pose.Transform{},
		Head: &pose.Transform{Position: mgl64.Vec3{0, 1.65, 0}},
	}
}

func assertFinite(t *testing.T, v mgl64.Vec3, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, finite(v), msgAndArgs...)
}

func TestAlignBoneWithGoalRespectsLimits(t *testing.T) {
	base := scene.NewNode("UpperArm")
	elbow := scene.NewNode("LowerArm")
	elbow.Position = mgl64.Vec3{-0.26, 0, 0}
	hand := scene.NewNode("Hand")
	hand.Position = mgl64.Vec3{-0.24, 0, 0}
	base.Add(elbow)
	elbow.Add(hand)

	limits := JointSettings[KindLeftArm]
	joints := []*JointSpec{limits[0].Spec(base, false), limits[1].Spec(elbow, true)}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		goal := mgl64.Vec3{rng.Float64()*2 - 1, rng.Float64()*2 - 1, rng.Float64()*2 - 1}
		twist := rng.Float64()*4*math.Pi - 2*math.Pi
		for _, j := range joints {
			e := AlignBoneWithGoal(j, hand, goal, &twist)
			for a, v := range e.Vec3() {
				assert.GreaterOrEqual(t, v, j.RotationMin[a]-1e-12, "joint %s axis %d", j.Node.Name, a)
				assert.LessOrEqual(t, v, j.RotationMax[a]+1e-12, "joint %s axis %d", j.Node.Name, a)
			}
			assert.InDelta(t, 1, j.Node.Quaternion.Len(), 1e-9)
		}
	}
}

func TestAlignBoneWithGoalReachesStraightGoal(t *testing.T) {
	bone := scene.NewNode("Bone")
	tip := scene.NewNode("Tip")
	tip.Position = mgl64.Vec3{1, 0, 0}
	bone.Add(tip)

	joint := JointSettings[KindHead][0].Spec(bone, false)
	AlignBoneWithGoal(joint, tip, mgl64.Vec3{0, 2, 0}, nil)

	got := tip.WorldPosition()
	assert.InDelta(t, 0, got[0], 1e-9)
	assert.InDelta(t, 1, got[1], 1e-9)
}

func TestTwistLockedJoint(t *testing.T) {
	bone := scene.NewNode("LowerArm")
	hand := scene.NewNode("Hand")
	hand.Position = mgl64.Vec3{0, 1, 0}
	hand.SetEuler(scene.NewEuler(0, 0.7, 0, scene.OrderYXZ))
	bone.Add(hand)

	joint := &JointSpec{
		Node:          bone,
		RotationOrder: scene.OrderXYZ,
		RotationMin:   fullTurn.Mul(-1),
		RotationMax:   fullTurn,
		TwistLocked:   true,
	}
	twist := 0.7 + 2*math.Pi
	e := AlignBoneWithGoal(joint, hand, mgl64.Vec3{0, 1, 0}, &twist)
	assert.InDelta(t, 0.7, e.Y, 1e-9)
	assert.InDelta(t, 0, hand.Euler(scene.OrderYXZ).Y, 1e-9)

	// Knees cannot twist at all.
	knee := JointSettings[KindLeftLeg][1].Spec(bone, true)
	e = AlignBoneWithGoal(knee, hand, mgl64.Vec3{0, 1, 0}, &twist)
	assert.Zero(t, e.Y)

	// Unlocked joints ignore the twist.
	joint.TwistLocked = false
	bone.Quaternion = mgl64.QuatIdent()
	e = AlignBoneWithGoal(joint, hand, mgl64.Vec3{0, 1, 0}, &twist)
	assert.InDelta(t, 0, e.Y, 1e-9)
}

func TestLowPassFilter(t *testing.T) {
	f := NewLowPassFilter(0.3)
	out := f.Apply(pose.Transform{Position: mgl64.Vec3{1, 0, 2}, Rotation: mgl64.Vec3{0.5, 0, 0}})
	assert.InDeltaSlice(t, []float64{0.3, 0, 0.6}, out.Position[:], 1e-12)
	assert.Equal(t, 0.5, out.Rotation[0])

	out = f.Apply(pose.Transform{Position: mgl64.Vec3{1, 5, 0}})
	assert.InDeltaSlice(t, []float64{0.51, 1.5, 0.6}, out.Position[:], 1e-12)

	f.Reset()
	out = f.Apply(pose.Transform{Position: mgl64.Vec3{1, 1, 1}})
	assert.InDeltaSlice(t, []float64{0.3, 0.3, 0.3}, out.Position[:], 1e-12)
}

func TestNewChainValidation(t *testing.T) {
	root := NewBonePose(scene.NewNode("Root"))
	node := scene.NewNode("Joint")
	spec := JointSettings[KindHead][0].Spec(node, false)
	opts := ChainOptions{Iterations: 1, Root: root}

	_, err := NewChain(KindHead, []*JointSpec{spec}, nil, opts)
	assert.ErrorIs(t, err, ErrNoEffector)
	_, err = NewChain(KindHead, nil, node, opts)
	assert.ErrorIs(t, err, ErrNoJoints)
	_, err = NewChain(KindHead, []*JointSpec{spec, spec, spec, spec}, node, opts)
	assert.ErrorIs(t, err, ErrTooManyJoints)
	_, err = NewChain(KindHead, []*JointSpec{spec}, node, ChainOptions{Root: root})
	assert.ErrorIs(t, err, ErrInvalidIterations)
	_, err = NewChain(KindHead, []*JointSpec{spec}, node, ChainOptions{Iterations: 1})
	assert.ErrorIs(t, err, ErrNoRoot)

	bad := &JointSpec{Node: node, RotationMin: mgl64.Vec3{1, 0, 0}}
	_, err = NewChain(KindHead, []*JointSpec{bad}, node, opts)
	assert.ErrorIs(t, err, ErrInvalidLimits)

	c, err := NewChain(KindLeftArm, []*JointSpec{spec}, node, opts)
	require.NoError(t, err)
	assert.Equal(t, KindLeftArm, c.Kind())
	assert.NotNil(t, c.filter)
	_, ok := c.LocalGoal()
	assert.False(t, ok)
}

func TestManagerBuildsAllChains(t *testing.T) {
	m, _, _ := newManager(t, skeletontest.Options{})
	assert.Equal(t, KindCount, m.ChainCount())
	assert.False(t, m.Flipped())
	assert.False(t, m.HalfBody())
	assert.InDelta(t, 0.6, m.HipsToHead(), 1e-9)

	assert.Len(t, m.Chain(KindHead).Joints(), 3)
	assert.Equal(t, headIterations, m.Chain(KindHead).Iterations())
	assert.Equal(t, armIterations, m.Chain(KindLeftArm).Iterations())
	assert.Equal(t, legIterations, m.Chain(KindRightLeg).Iterations())

	arm := m.Chain(KindRightArm).Joints()
	require.Len(t, arm, 2)
	assert.False(t, arm[0].TwistLocked)
	assert.True(t, arm[1].TwistLocked)
	assert.Equal(t, scene.OrderXZY, arm[1].RotationOrder)
	assert.Nil(t, m.Chain(KindCount))
}

func TestPartialSkeletonSkipsChains(t *testing.T) {
	m, _, _ := newManager(t, skeletontest.Options{NoLegs: true})
	assert.Equal(t, 3, m.ChainCount())
	assert.Nil(t, m.Chain(KindLeftLeg))
	assert.Nil(t, m.Chain(KindRightLeg))
	assert.NotPanics(t, func() { m.UpdatePose(standing()) })

	empty := NewManager(skeleton.Map(scene.NewNode("Armature")), nil)
	assert.Zero(t, empty.ChainCount())
	assert.NotPanics(t, func() { empty.UpdatePose(standing()) })
}

func TestIdleArmsHangBesideBody(t *testing.T) {
	m, sk, _ := newManager(t, skeletontest.Options{})
	m.UpdatePose(standing())

	for _, c := range []struct {
		kind Kind
		hand skeleton.Role
		x    float64
	}{{KindLeftArm, skeleton.LeftHand, -0.3}, {KindRightArm, skeleton.RightHand, 0.3}} {
		goal, ok := m.Chain(c.kind).Goal()
		require.True(t, ok)
		assert.InDeltaSlice(t, []float64{c.x, 0.9, 0}, goal[:], 1e-9, c.kind.String())

		got := sk.Bone(c.hand).WorldPosition()
		assert.Less(t, got.Sub(goal).Len(), 0.05, "%s reached %v", c.kind, got)
	}
}

func TestIdleArmsFollowHeadYaw(t *testing.T) {
	m, _, _ := newManager(t, skeletontest.Options{})
	in := standing()
	in.Head.Rotation = mgl64.Vec3{0, math.Pi / 2, 0}
	m.UpdatePose(in)

	goal, ok := m.Chain(KindLeftArm).Goal()
	require.True(t, ok)
	want := scene.RotateY(mgl64.Vec3{-0.3, 0.9, 0}, math.Pi/2)
	assert.InDeltaSlice(t, want[:], goal[:], 1e-9)
}

func TestHandednessMirrorsLocalGoals(t *testing.T) {
	normal, normalSk, _ := newManager(t, skeletontest.Options{})
	mirrored, mirroredSk, _ := newManager(t, skeletontest.Options{Mirrored: true})
	require.False(t, normal.Flipped())
	require.True(t, mirrored.Flipped())

	in := standing()
	in.IsVR = true
	in.LeftHand = &pose.Transform{Position: mgl64.Vec3{-0.25, 1.2, -0.3}, Rotation: mgl64.Vec3{0.2, 0.1, 0}}
	in.RightHand = &pose.Transform{Position: mgl64.Vec3{0.25, 1.1, -0.2}}
	normal.UpdatePose(in)
	mirrored.UpdatePose(in)

	for _, kind := range []Kind{KindHead, KindLeftArm, KindRightArm, KindLeftLeg, KindRightLeg} {
		a, ok := normal.Chain(kind).LocalGoal()
		require.True(t, ok, kind.String())
		b, ok := mirrored.Chain(kind).LocalGoal()
		require.True(t, ok, kind.String())

		assert.InDelta(t, -a[0], b[0], 1e-9, kind.String())
		assert.InDelta(t, a[1], b[1], 1e-9, kind.String())
		assert.InDelta(t, -a[2], b[2], 1e-9, kind.String())

		wa, _ := normal.Chain(kind).Goal()
		wb, _ := mirrored.Chain(kind).Goal()
		assert.InDeltaSlice(t, wa[:], wb[:], 1e-9, kind.String())
	}

	// Same inputs, hips turned half a revolution on the mirrored rig.
	qa := normalSk.Bone(skeleton.Hips).Quaternion
	qb := mirroredSk.Bone(skeleton.Hips).Quaternion
	assert.InDelta(t, 1, math.Abs(qa.Mul(mgl64.QuatRotate(math.Pi, scene.Up)).Dot(qb)), 1e-9)
	assert.Less(t, math.Abs(qa.Dot(qb)), 1e-6)
}

func TestHipsFollowHeadYaw(t *testing.T) {
	for _, mirrored := range []bool{false, true} {
		m, sk, _ := newManager(t, skeletontest.Options{Mirrored: mirrored})
		in := standing()
		in.Head.Rotation = mgl64.Vec3{0, 0.5, 0}
		m.UpdatePose(in)

		want := mgl64.QuatRotate(0.5+facing(mirrored), scene.Up)
		got := sk.Bone(skeleton.Hips).Quaternion
		assert.InDelta(t, 1, math.Abs(got.Dot(want)), 1e-9, "mirrored=%v", mirrored)
		assert.InDelta(t, 1.0, sk.Bone(skeleton.Hips).Position[1], 1e-9)
	}
}

func TestSelfAvatarOffsets(t *testing.T) {
	other, _, _ := newManager(t, skeletontest.Options{})
	self, sk, _ := newManager(t, skeletontest.Options{})

	in := standing()
	other.UpdatePose(in)
	in.IsSelf = true
	self.UpdatePose(in)

	a, _ := other.Chain(KindHead).Goal()
	b, _ := self.Chain(KindHead).Goal()
	assert.InDelta(t, a[1], b[1], 1e-9)
	assert.InDelta(t, selfHeadOffset, math.Hypot(b[0]-a[0], b[2]-a[2]), 1e-9)

	hips := sk.Bone(skeleton.Hips).Position
	assert.InDelta(t, selfHipsOffset, hips[2], 1e-9)
}

func TestNonFiniteInputIsIgnored(t *testing.T) {
	m, _, model := newManager(t, skeletontest.Options{})
	m.UpdatePose(standing())

	nan := math.NaN()
	m.UpdatePose(TrackedInputs{
		Rig:      &pose.Transform{Position: mgl64.Vec3{nan, 0, 0}},
		Head:     &pose.Transform{Position: mgl64.Vec3{0, nan, 0}, Rotation: mgl64.Vec3{0, math.Inf(1), 0}},
		LeftHand: &pose.Transform{Position: mgl64.Vec3{nan, nan, nan}},
		IsVR:     true,
	})

	model.Traverse(func(n *scene.Node) {
		assertFinite(t, n.WorldPosition(), n.Name)
		assert.False(t, math.IsNaN(n.Quaternion.Len()), n.Name)
	})
}

func TestModelRevealedOnFirstInput(t *testing.T) {
	m, _, model := newManager(t, skeletontest.Options{})
	require.False(t, model.Visible)

	m.UpdatePose(TrackedInputs{})
	assert.False(t, model.Visible)
	assert.False(t, m.Revealed())

	m.UpdatePose(TrackedInputs{Rig: &pose.Transform{}})
	assert.True(t, model.Visible)
	assert.True(t, m.Revealed())
}

func TestHalfBodyDetection(t *testing.T) {
	root := scene.NewNode("Root")
	hips := scene.NewNode("Hips")
	spine := scene.NewNode("Spine")
	root.Add(hips)
	hips.Add(spine)
	for _, name := range []string{"Head", "LeftHand", "RightHand"} {
		n := scene.NewNode(name)
		n.Position = mgl64.Vec3{0, 0.3, 0}
		spine.Add(n)
	}
	spine.Find("LeftHand").Position[0] = -0.3
	spine.Find("RightHand").Position[0] = 0.3

	m := NewManager(skeleton.Map(root), nil)
	assert.True(t, m.HalfBody())
	assert.False(t, m.Flipped())
}
