package ik

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/scene"
)

// Kind selects the goal placement and effector orientation of a chain.
type Kind uint8

const (
	KindHead Kind = iota
	KindLeftArm
	KindRightArm
	KindLeftLeg
	KindRightLeg

	KindCount = 5
)

var kindNames = [KindCount]string{"head", "left-arm", "right-arm", "left-leg", "right-leg"}

func (k Kind) String() string {
	if k < KindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) left() bool {
	return k == KindLeftArm || k == KindLeftLeg
}

func (k Kind) arm() bool {
	return k == KindLeftArm || k == KindRightArm
}

const (
	headIterations = 3
	armIterations  = 2
	legIterations  = 3

	// selfHeadOffset pulls the local head goal behind the view so the
	// camera does not clip the model's face.
	selfHeadOffset = 0.1
	armFilterAlpha = 0.3
)

// Idle goals in rig space, before the side sign is applied.
var (
	idleHand = mgl64.Vec3{0.3, 0.9, 0}
	legSpan  = 0.15
)

// ChainOptions carries the manager-owned state a chain reads while solving.
type ChainOptions struct {
	Iterations int
	// Root is the avatar root pose; its world position and yaw anchor goals.
	Root *BonePose
	// Hips is driven by the head chain and read by leg chains.
	Hips *BonePose
	// Scene is the node arm effectors are temporarily attached to when
	// aligning them to a world rotation. Defaults to the effector's root.
	Scene    *scene.Node
	Flipped  bool
	HalfBody bool
}

// Chain is one IK chain: up to three joints driven so that the effector
// reaches a goal computed from tracked input.
type Chain struct {
	kind       Kind
	joints     []*JointSpec
	effector   *scene.Node
	iterations int

	root     *BonePose
	hips     *BonePose
	scene    *scene.Node
	flipped  bool
	halfBody bool
	filter   *LowPassFilter

	goal     mgl64.Vec3
	goalRoot mgl64.Vec3
	goalYaw  float64
	hasGoal  bool
}

func NewChain(kind Kind, joints []*JointSpec, effector *scene.Node, opts ChainOptions) (*Chain, error) {
	switch {
	case effector == nil:
		return nil, ErrNoEffector
	case len(joints) == 0:
		return nil, ErrNoJoints
	case len(joints) > 3:
		return nil, ErrTooManyJoints
	case opts.Iterations < 1:
		return nil, ErrInvalidIterations
	case opts.Root == nil || opts.Root.Node == nil:
		return nil, ErrNoRoot
	}
	for _, j := range joints {
		if err := j.Validate(); err != nil {
			return nil, err
		}
	}

	c := &Chain{
		kind:       kind,
		joints:     joints,
		effector:   effector,
		iterations: opts.Iterations,
		root:       opts.Root,
		hips:       opts.Hips,
		scene:      opts.Scene,
		flipped:    opts.Flipped,
		halfBody:   opts.HalfBody,
	}
	if kind.arm() {
		c.filter = NewLowPassFilter(armFilterAlpha)
	}
	return c, nil
}

func (c *Chain) Kind() Kind               { return c.kind }
func (c *Chain) Joints() []*JointSpec     { return c.joints }
func (c *Chain) Effector() *scene.Node    { return c.effector }
func (c *Chain) Iterations() int          { return c.iterations }
func (c *Chain) Goal() (mgl64.Vec3, bool) { return c.goal, c.hasGoal }

// LocalGoal is the last goal expressed in the avatar's facing frame. Models
// with opposite handedness receive X-mirrored local goals for the same input.
func (c *Chain) LocalGoal() (mgl64.Vec3, bool) {
	if !c.hasGoal {
		return mgl64.Vec3{}, false
	}
	return scene.RotateY(c.goal.Sub(c.goalRoot), -(c.goalYaw + facing(c.flipped))), true
}

// Solve places the goal for input, orients the effector and runs the CCD
// iterations. input may be nil when no sample exists for the chain; head
// is the latest head transform, zero when unknown.
func (c *Chain) Solve(input *pose.Transform, head pose.Transform, isVR, isSelf bool) {
	if c.kind == KindHead {
		c.follow(head)
	}
	if !valid(input) {
		input = nil
	}
	if input != nil && c.filter != nil && isVR && !c.halfBody {
		filtered := c.filter.Apply(*input)
		input = &filtered
	}

	goal, ok := c.placeGoal(input, head, isVR, isSelf)
	if !ok {
		return
	}
	c.goal, c.hasGoal = goal, true

	c.orientEffector(input, isVR)

	// The effector twist is read once so that zeroing it during the first
	// pass does not unlock the joints on later passes.
	twist := c.effector.Euler(scene.OrderYXZ).Y
	for i := 0; i < c.iterations; i++ {
		for _, j := range c.joints {
			if j.TwistLocked {
				AlignBoneWithGoal(j, c.effector, goal, &twist)
			} else {
				AlignBoneWithGoal(j, c.effector, goal, nil)
			}
		}
	}
}

func (c *Chain) placeGoal(input *pose.Transform, head pose.Transform, isVR, isSelf bool) (mgl64.Vec3, bool) {
	rootWorld := c.root.Node.WorldPosition()
	rootYaw := c.root.Rotation.Y
	c.goalRoot, c.goalYaw = rootWorld, rootYaw

	var local mgl64.Vec3
	yaw := rootYaw
	switch c.kind {
	case KindHead:
		if input == nil {
			return mgl64.Vec3{}, false
		}
		local = input.Position

	case KindLeftArm, KindRightArm:
		if input != nil && isVR {
			local = input.Position
			break
		}
		local = idleHand
		if c.kind.left() {
			local[0] = -local[0]
		}
		if !isVR {
			yaw += head.Rotation[1]
		}

	case KindLeftLeg, KindRightLeg:
		var hips mgl64.Vec3
		if c.hips != nil {
			hips = c.hips.Position
		}
		span := legSpan
		if c.kind.left() {
			span = -span
		}
		local = mgl64.Vec3{hips[0] + span, 0, hips[2]}
		yaw += head.Rotation[1]
	}

	goal := rootWorld.Add(scene.RotateY(local, yaw))
	if c.kind == KindHead && isSelf {
		view := c.effector.WorldDirection()
		view[1] = 0
		sign := 1.0
		if c.flipped {
			sign = -1
		}
		goal = goal.Add(view.Mul(selfHeadOffset * sign))
	}
	if !finite(goal) {
		return mgl64.Vec3{}, false
	}
	return goal, true
}

func (c *Chain) orientEffector(input *pose.Transform, isVR bool) {
	switch c.kind {
	case KindHead:
		rx := input.Rotation[0]
		if c.flipped {
			rx = -rx
		}
		c.effector.SetEuler(scene.NewEuler(rx, 0, input.Rotation[2], scene.OrderYXZ))

	case KindLeftArm, KindRightArm:
		if input == nil || !isVR {
			c.effector.Quaternion = mgl64.QuatIdent()
			return
		}
		c.alignHand(*input)

	case KindLeftLeg, KindRightLeg:
		pitch := -math.Pi / 3
		if c.flipped {
			pitch = math.Pi / 3
		}
		c.effector.SetEuler(scene.NewEuler(pitch, 0, 0, scene.OrderYXZ))
	}
}

// alignHand gives the hand the controller's world rotation by attaching it
// to the scene, rotating it there and reattaching it to its parent, then
// applies the model-space correction for the controller grip.
func (c *Chain) alignHand(in pose.Transform) {
	hand := c.effector
	parent := hand.Parent()
	target := c.scene
	if target == nil {
		target = hand.Root()
	}

	if target != hand {
		target.Attach(hand)
	}
	if c.halfBody {
		hand.SetWorldPosition(c.goal)
	}
	rig := scene.NewEuler(in.Rotation[0], in.Rotation[1], in.Rotation[2], scene.OrderYXZ).Quat()
	hand.SetWorldQuaternion(c.root.Node.WorldQuaternion().Mul(rig))
	if parent != nil {
		parent.Attach(hand)
	}

	side := 1.0
	if !c.kind.left() {
		side = -1
	}
	if c.flipped {
		hand.RotateOnAxis(mgl64.Vec3{1, 0, 0}, -math.Pi/3)
		hand.RotateOnAxis(mgl64.Vec3{0, 1, 0}, side*math.Pi/2)
	} else {
		hand.RotateOnAxis(mgl64.Vec3{0, 0, 1}, side*math.Pi/2)
		hand.RotateOnAxis(mgl64.Vec3{0, 1, 0}, -side*math.Pi/2)
	}
}

// follow turns the hips to the head yaw. Hips are twist-locked: their yaw
// is taken from the head rather than solved.
func (c *Chain) follow(head pose.Transform) {
	if c.hips == nil || math.IsNaN(head.Rotation[1]) || math.IsInf(head.Rotation[1], 0) {
		return
	}
	c.hips.Rotation = scene.NewEuler(0, hipsYaw(head, c.flipped), 0, scene.OrderXYZ)
	c.hips.Sync()
}

func hipsYaw(head pose.Transform, flipped bool) float64 {
	return scene.WrapAngle(head.Rotation[1] + facing(flipped))
}

// facing is the yaw that turns a model's forward onto the rig's forward.
func facing(flipped bool) float64 {
	if flipped {
		return math.Pi
	}
	return 0
}

func valid(t *pose.Transform) bool {
	return t != nil && finite(t.Position) && finite(t.Rotation)
}

func finite(v mgl64.Vec3) bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
