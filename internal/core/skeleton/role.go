package skeleton

import "fmt"

// Role is a canonical skeletal position. Declaration order follows hierarchy
// depth and is the order in which roles are tried against each node.
type Role uint8

const (
	Root Role = iota
	Hips
	Spine
	Chest
	Neck
	Head
	LeftEye
	RightEye
	LeftUpperLeg
	LeftLowerLeg
	LeftFoot
	RightUpperLeg
	RightLowerLeg
	RightFoot
	LeftShoulder
	LeftUpperArm
	LeftLowerArm
	LeftHand
	RightShoulder
	RightUpperArm
	RightLowerArm
	RightHand

	RoleCount = 22

	// NoRole marks an absent parent constraint.
	NoRole Role = 0xFF
)

var roleNames = [RoleCount]string{
	"Root", "Hips", "Spine", "Chest", "Neck", "Head", "LeftEye", "RightEye",
	"LeftUpperLeg", "LeftLowerLeg", "LeftFoot", "RightUpperLeg", "RightLowerLeg", "RightFoot",
	"LeftShoulder", "LeftUpperArm", "LeftLowerArm", "LeftHand",
	"RightShoulder", "RightUpperArm", "RightLowerArm", "RightHand",
}

func (r Role) String() string {
	if int(r) < RoleCount {
		return roleNames[r]
	}
	if r == NoRole {
		return "None"
	}
	return fmt.Sprintf("Role(%d)", uint8(r))
}

func ParseRole(s string) (Role, bool) {
	for i, name := range roleNames {
		if name == s {
			return Role(i), true
		}
	}
	return NoRole, false
}

// Roles returns every role in declaration order.
func Roles() []Role {
	out := make([]Role, RoleCount)
	for i := range out {
		out[i] = Role(i)
	}
	return out
}
