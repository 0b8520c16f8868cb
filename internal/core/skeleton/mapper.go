package skeleton

import (
	"strings"

	"github.com/zeusync/posesync/internal/core/scene"
)

// Priority ranks how confidently a node name matched a rule.
type Priority uint8

const (
	NoMatch Priority = iota
	// Low means the role type matched only via the position-agnostic list
	// of a rule that defines position qualifiers.
	Low
	// High means type and position matched, or the rule has no position
	// qualifiers and its type matched.
	High
)

// Mapper discovers role bindings on arbitrary node trees.
type Mapper struct {
	rules Rules
}

func NewMapper(rules Rules) *Mapper {
	return &Mapper{rules: rules}
}

// Map binds roles on a default-rules mapper.
func Map(root *scene.Node) *Skeleton {
	return NewMapper(DefaultRules()).Map(root)
}

// Map walks root depth-first. Nothing is bound until a node matches the Root
// rule; after that each node is offered to every role without a High binding,
// in role order. A High match claims the role for good; a Low match is kept
// only while the role has no other binding and can be replaced by a later
// High match. Each node claims at most one role.
func (m *Mapper) Map(root *scene.Node) *Skeleton {
	sk := &Skeleton{}
	started := false

	root.Traverse(func(n *scene.Node) {
		name := strings.ToLower(n.Name)
		if !started {
			if m.match(name, Root) == High {
				sk.bind(Root, n, High)
				started = true
			}
			return
		}

		for role := Hips; role < RoleCount; role++ {
			if sk.priority[role] == High {
				continue
			}
			if !m.parentSatisfied(sk, role, n) {
				continue
			}
			switch m.match(name, role) {
			case High:
				sk.bind(role, n, High)
				return
			case Low:
				if sk.bones[role] == nil {
					sk.bind(role, n, Low)
					return
				}
			}
		}
	})
	return sk
}

func (m *Mapper) parentSatisfied(sk *Skeleton, role Role, n *scene.Node) bool {
	parent := m.rules[role].Parent
	if parent == NoRole {
		return true
	}
	bound := sk.bones[parent]
	return bound != nil && n.Parent() == bound
}

// match evaluates a lowercased node name against a role's rule. Matched
// keywords are cut out before the next stage so that side keywords are only
// searched in what remains.
func (m *Mapper) match(name string, role Role) Priority {
	rule := &m.rules[role]

	positioned := false
	if len(rule.Position) > 0 {
		name, positioned = cut(name, rule.Position)
	}

	result := NoMatch
	switch {
	case positioned:
		var ok bool
		if name, ok = cut(name, rule.TypeWithPosition); ok {
			result = High
		}
	default:
		var ok bool
		if name, ok = cut(name, rule.TypeWithoutPosition); ok {
			result = High
			if len(rule.Position) > 0 {
				result = Low
			}
		}
	}
	if result == NoMatch {
		return NoMatch
	}

	if len(rule.Side) > 0 && !containsAny(name, rule.Side) {
		return NoMatch
	}
	return result
}

// cut removes the first listed keyword found in s.
func cut(s string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if i := strings.Index(s, k); i >= 0 {
			return s[:i] + s[i+len(k):], true
		}
	}
	return s, false
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
