package ik

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/posesync/internal/core/pose"
	"github.com/zeusync/posesync/internal/core/scene"
	"github.com/zeusync/posesync/internal/core/skeleton"
)

const (
	// hipsDrop lowers the hips slightly under the tracked head height.
	hipsDrop = 0.05
	// selfHipsOffset moves the local avatar's hips behind the camera.
	selfHipsOffset = 0.1
	// defaultHipsToHead is used when the model has no head bone.
	defaultHipsToHead = 1.0
)

// TrackedInputs is one frame of tracked transforms in rig space. Nil fields
// have no sample.
type TrackedInputs struct {
	Rig       *pose.Transform
	Head      *pose.Transform
	LeftHand  *pose.Transform
	RightHand *pose.Transform
	IsVR      bool
	IsSelf    bool
}

// Manager owns the chains of one avatar and drives them from tracked input.
type Manager struct {
	root *BonePose
	hips *BonePose

	chains [KindCount]*Chain

	flipped    bool
	halfBody   bool
	hipsToHead float64
	revealed   bool
}

// NewManager builds the chains the skeleton supports. Chains whose effector
// is unbound are skipped, as are joints with no bone. The model stays hidden
// until UpdatePose receives its first input.
func NewManager(sk *skeleton.Skeleton, sceneRoot *scene.Node) *Manager {
	m := &Manager{hipsToHead: defaultHipsToHead}

	rootNode, hipsNode := sk.Bone(skeleton.Root), sk.Bone(skeleton.Hips)
	if rootNode == nil || hipsNode == nil {
		return m
	}
	m.root = NewBonePose(rootNode)
	m.hips = NewBonePose(hipsNode)

	if parent := rootNode.Parent(); parent != nil {
		parent.Visible = false
	}

	left, right := sk.Bone(skeleton.LeftHand), sk.Bone(skeleton.RightHand)
	if left != nil && right != nil {
		m.flipped = left.Position[0] > right.Position[0]
	}
	if head := sk.Bone(skeleton.Head); head != nil {
		m.hipsToHead = head.WorldPosition()[1] - hipsNode.WorldPosition()[1]
	} else {
		m.hipsToHead = defaultHipsToHead - hipsNode.WorldPosition()[1]
	}
	spine := sk.Bone(skeleton.Spine)
	m.halfBody = spine != nil && left != nil && right != nil &&
		left.Parent() == spine && right.Parent() == spine && spine.Parent() == hipsNode

	opts := ChainOptions{
		Root:     m.root,
		Hips:     m.hips,
		Scene:    sceneRoot,
		Flipped:  m.flipped,
		HalfBody: m.halfBody,
	}
	m.add(KindHead, sk, headIterations, opts, skeleton.Head,
		skeleton.Spine, skeleton.Chest, skeleton.Neck)
	m.add(KindLeftArm, sk, armIterations, opts, skeleton.LeftHand,
		skeleton.LeftUpperArm, skeleton.LeftLowerArm)
	m.add(KindRightArm, sk, armIterations, opts, skeleton.RightHand,
		skeleton.RightUpperArm, skeleton.RightLowerArm)
	m.add(KindLeftLeg, sk, legIterations, opts, skeleton.LeftFoot,
		skeleton.LeftUpperLeg, skeleton.LeftLowerLeg)
	m.add(KindRightLeg, sk, legIterations, opts, skeleton.RightFoot,
		skeleton.RightUpperLeg, skeleton.RightLowerLeg)
	return m
}

func (m *Manager) add(kind Kind, sk *skeleton.Skeleton, iterations int, opts ChainOptions, effector skeleton.Role, roles ...skeleton.Role) {
	settings := JointSettings[kind]
	joints := make([]*JointSpec, 0, len(roles))
	for i, role := range roles {
		node := sk.Bone(role)
		if node == nil {
			continue
		}
		// The last joint of a chain is its elbow; the head chain uses base
		// limits for everything below the neck.
		limits := settings[0]
		elbow := i == len(roles)-1
		if elbow {
			limits = settings[1]
		}
		joints = append(joints, limits.Spec(node, elbow && kind != KindHead))
	}

	opts.Iterations = iterations
	if c, err := NewChain(kind, joints, sk.Bone(effector), opts); err == nil {
		m.chains[kind] = c
	}
}

// UpdatePose applies one frame of tracked input to the avatar.
func (m *Manager) UpdatePose(in TrackedInputs) {
	if m.root == nil {
		return
	}
	if !m.revealed && (in.Rig != nil || in.Head != nil) {
		if parent := m.root.Node.Parent(); parent != nil {
			parent.Visible = true
		}
		m.revealed = true
	}

	var rig, head pose.Transform
	if valid(in.Rig) {
		rig = *in.Rig
	}
	var headInput *pose.Transform
	if valid(in.Head) {
		head = *in.Head
		headInput = &head
	}

	m.root.Position = rig.Position
	m.root.Rotation = scene.NewEuler(rig.Rotation[0], rig.Rotation[1], 0, scene.OrderXYZ)
	m.root.Sync()

	yaw := hipsYaw(head, m.flipped)
	hips := mgl64.Vec3{0, head.Position[1] - m.hipsToHead - hipsDrop, 0}
	if in.IsVR {
		hips[0], hips[2] = head.Position[0], head.Position[2]
	}
	if in.IsSelf {
		offset := mgl64.Vec3{0, 0, selfHipsOffset}
		if m.flipped {
			offset[2] = -selfHipsOffset
		}
		hips = hips.Add(scene.RotateY(offset, yaw))
	}
	m.hips.Position = hips
	if m.chains[KindHead] == nil {
		m.hips.Rotation = scene.NewEuler(0, yaw, 0, scene.OrderXYZ)
	}
	m.hips.Sync()

	inputs := [KindCount]*pose.Transform{
		KindHead:     headInput,
		KindLeftArm:  in.LeftHand,
		KindRightArm: in.RightHand,
	}
	for kind, c := range m.chains {
		if c != nil {
			c.Solve(inputs[kind], head, in.IsVR, in.IsSelf)
		}
	}
}

func (m *Manager) Chain(kind Kind) *Chain {
	if kind >= KindCount {
		return nil
	}
	return m.chains[kind]
}

func (m *Manager) ChainCount() int {
	n := 0
	for _, c := range m.chains {
		if c != nil {
			n++
		}
	}
	return n
}

func (m *Manager) Flipped() bool       { return m.flipped }
func (m *Manager) HalfBody() bool      { return m.halfBody }
func (m *Manager) HipsToHead() float64 { return m.hipsToHead }
func (m *Manager) Revealed() bool      { return m.revealed }
