package skeleton

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule describes how a node name is recognised as a role.
type Rule struct {
	// Side keywords; empty means side-agnostic.
	Side []string
	// Position qualifiers such as "upper" or "lower".
	Position []string
	// TypeWithPosition is tried after a position qualifier matched.
	TypeWithPosition []string
	// TypeWithoutPosition is tried when no position qualifier matched.
	TypeWithoutPosition []string
	// Parent must be bound to the node's direct parent for a match.
	Parent Role
}

// Rules holds one Rule per role.
type Rules [RoleCount]Rule

var (
	leftKeywords  = []string{"left", "_l", "l_", ".l", "l.", " l", "l "}
	rightKeywords = []string{"right", "_r", "r_", ".r", "r.", " r", "r "}

	upperKeywords = []string{"upper", "up"}
	lowerKeywords = []string{"lower", "low", "fore"}
)

// DefaultRules returns the built-in keyword table.
func DefaultRules() Rules {
	var r Rules
	set := func(role Role, typ ...string) {
		r[role] = Rule{TypeWithoutPosition: typ, Parent: NoRole}
	}
	set(Root, "root")
	set(Hips, "hips", "bip", "pelvis")
	set(Spine, "spine")
	set(Chest, "chest", "spine")
	r[Chest].Parent = Spine
	set(Neck, "neck")
	set(Head, "head")

	setSide(&r, leftKeywords, LeftEye, LeftUpperLeg, LeftLowerLeg, LeftFoot)
	setSide(&r, rightKeywords, RightEye, RightUpperLeg, RightLowerLeg, RightFoot)
	setArm(&r, leftKeywords, LeftShoulder, LeftUpperArm, LeftLowerArm, LeftHand)
	setArm(&r, rightKeywords, RightShoulder, RightUpperArm, RightLowerArm, RightHand)
	return r
}

func setSide(r *Rules, side []string, eye, upperLeg, lowerLeg, foot Role) {
	r[eye] = Rule{Side: side, TypeWithoutPosition: []string{"eye"}, Parent: NoRole}
	r[upperLeg] = Rule{
		Side:                side,
		Position:            upperKeywords,
		TypeWithPosition:    []string{"leg"},
		TypeWithoutPosition: []string{"thigh"},
		Parent:              NoRole,
	}
	r[lowerLeg] = Rule{
		Side:                side,
		Position:            lowerKeywords,
		TypeWithPosition:    []string{"leg"},
		TypeWithoutPosition: []string{"leg", "calf", "knee"},
		Parent:              upperLeg,
	}
	r[foot] = Rule{Side: side, TypeWithoutPosition: []string{"foot", "shoe"}, Parent: NoRole}
}

func setArm(r *Rules, side []string, shoulder, upperArm, lowerArm, hand Role) {
	r[shoulder] = Rule{Side: side, TypeWithoutPosition: []string{"shoulder", "clavicle"}, Parent: NoRole}
	r[upperArm] = Rule{
		Side:                side,
		Position:            upperKeywords,
		TypeWithPosition:    []string{"arm"},
		TypeWithoutPosition: []string{"arm"},
		Parent:              NoRole,
	}
	r[lowerArm] = Rule{
		Side:                side,
		Position:            lowerKeywords,
		TypeWithPosition:    []string{"arm"},
		TypeWithoutPosition: []string{"elbow"},
		Parent:              upperArm,
	}
	r[hand] = Rule{Side: side, TypeWithoutPosition: []string{"hand", "wrist"}, Parent: NoRole}
}

type ruleOverride struct {
	Side                []string `yaml:"side"`
	Position            []string `yaml:"position"`
	TypeWithPosition    []string `yaml:"type_with_position"`
	TypeWithoutPosition []string `yaml:"type_without_position"`
	Parent              *string  `yaml:"parent"`
}

type rulesFile struct {
	Rules map[string]ruleOverride `yaml:"rules"`
}

// LoadRules reads per-role overrides from YAML on top of base. Only the
// fields present in the document are replaced; `parent: none` removes a
// parent constraint.
//
//	rules:
//	  Root:
//	    type_without_position: [root, armature]
func LoadRules(r io.Reader, base Rules) (Rules, error) {
	var file rulesFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && err != io.EOF {
		return base, fmt.Errorf("decode bone rules: %w", err)
	}

	out := base
	for name, o := range file.Rules {
		role, ok := ParseRole(name)
		if !ok {
			return base, fmt.Errorf("%w: %q", ErrUnknownRole, name)
		}
		rule := out[role]
		if o.Side != nil {
			rule.Side = lower(o.Side)
		}
		if o.Position != nil {
			rule.Position = lower(o.Position)
		}
		if o.TypeWithPosition != nil {
			rule.TypeWithPosition = lower(o.TypeWithPosition)
		}
		if o.TypeWithoutPosition != nil {
			rule.TypeWithoutPosition = lower(o.TypeWithoutPosition)
		}
		if o.Parent != nil {
			if strings.EqualFold(*o.Parent, "none") || *o.Parent == "" {
				rule.Parent = NoRole
			} else if p, ok := ParseRole(*o.Parent); ok && p < role {
				rule.Parent = p
			} else {
				return base, fmt.Errorf("%w: parent %q of %s", ErrUnknownRole, *o.Parent, role)
			}
		}
		out[role] = rule
	}
	return out, nil
}

func lower(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
