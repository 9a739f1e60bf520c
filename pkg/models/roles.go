package models

import "strings"

// NegationPrefix marks a role the subject must not hold, e.g. "!guest".
const NegationPrefix = "!"

// RoleCheck is one role requirement within a group.
type RoleCheck struct {
	Name    string
	Negated bool
}

func ParseRoleCheck(s string) RoleCheck {
	if name, ok := strings.CutPrefix(s, NegationPrefix); ok {
		return RoleCheck{Name: name, Negated: true}
	}
	return RoleCheck{Name: s}
}

func (c RoleCheck) String() string {
	if c.Negated {
		return NegationPrefix + c.Name
	}
	return c.Name
}

// Satisfied reports whether held satisfies the check.
func (c RoleCheck) Satisfied(held map[string]struct{}) bool {
	_, ok := held[c.Name]
	return ok != c.Negated
}

// RoleGroup is ANDed: every check must pass. An empty group is satisfied.
type RoleGroup []RoleCheck

func ParseRoleGroup(names ...string) RoleGroup {
	g := make(RoleGroup, 0, len(names))
	for _, n := range names {
		g = append(g, ParseRoleCheck(n))
	}
	return g
}

func (g RoleGroup) Satisfied(held map[string]struct{}) bool {
	for _, c := range g {
		if !c.Satisfied(held) {
			return false
		}
	}
	return true
}

// RoleGroups is ORed: any satisfied group suffices. An empty list is never satisfied.
type RoleGroups []RoleGroup

// ParseRoleGroups converts the string-array form, one inner slice per group.
func ParseRoleGroups(groups [][]string) RoleGroups {
	out := make(RoleGroups, 0, len(groups))
	for _, g := range groups {
		out = append(out, ParseRoleGroup(g...))
	}
	return out
}

func (gs RoleGroups) Satisfied(s Subject) bool {
	if s == nil || len(gs) == 0 {
		return false
	}
	held := make(map[string]struct{})
	for _, r := range s.RoleNames() {
		held[r] = struct{}{}
	}
	for _, g := range gs {
		if g.Satisfied(held) {
			return true
		}
	}
	return false
}
