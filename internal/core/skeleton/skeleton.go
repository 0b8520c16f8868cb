package skeleton

import "github.com/zeusync/posesync/internal/core/scene"

// Skeleton maps roles to nodes of a loaded asset. The nodes belong to the
// asset tree; a Skeleton only references them.
type Skeleton struct {
	bones    [RoleCount]*scene.Node
	priority [RoleCount]Priority
}

func (s *Skeleton) bind(role Role, n *scene.Node, p Priority) {
	s.bones[role] = n
	s.priority[role] = p
}

// Bone returns the node bound to role, or nil.
func (s *Skeleton) Bone(role Role) *scene.Node {
	if int(role) >= RoleCount {
		return nil
	}
	return s.bones[role]
}

func (s *Skeleton) Has(role Role) bool {
	return s.Bone(role) != nil
}

func (s *Skeleton) Priority(role Role) Priority {
	if int(role) >= RoleCount {
		return NoMatch
	}
	return s.priority[role]
}

// Len counts bound roles.
func (s *Skeleton) Len() int {
	n := 0
	for _, b := range s.bones {
		if b != nil {
			n++
		}
	}
	return n
}

// Bound lists bound roles in role order.
func (s *Skeleton) Bound() []Role {
	out := make([]Role, 0, RoleCount)
	for i, b := range s.bones {
		if b != nil {
			out = append(out, Role(i))
		}
	}
	return out
}

// Missing lists unbound roles in role order.
func (s *Skeleton) Missing() []Role {
	out := make([]Role, 0)
	for i, b := range s.bones {
		if b == nil {
			out = append(out, Role(i))
		}
	}
	return out
}
