package models

import (
	"errors"
	"slices"
)

var ErrEmptyIdentifier = errors.New("subject identifier is empty")

// Subject is an authenticated principal. Roles and permissions are opaque,
// case-sensitive strings.
type Subject interface {
	Identifier() string
	RoleNames() []string
	PermissionValues() []string
}

// BasicSubject is an immutable Subject with duplicate roles and permissions collapsed.
type BasicSubject struct {
	id          string
	roles       []string
	permissions []string
}

func NewSubject(id string, roles, permissions []string) (*BasicSubject, error) {
	if id == "" {
		return nil, ErrEmptyIdentifier
	}
	return &BasicSubject{
		id:          id,
		roles:       dedupe(roles),
		permissions: dedupe(permissions),
	}, nil
}

func (s *BasicSubject) Identifier() string { return s.id }

func (s *BasicSubject) RoleNames() []string { return slices.Clone(s.roles) }

func (s *BasicSubject) PermissionValues() []string { return slices.Clone(s.permissions) }

// HasRole reports whether the subject holds the named role.
func HasRole(s Subject, name string) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.RoleNames(), name)
}

// HasPermission reports whether the subject holds a permission equal to value.
func HasPermission(s Subject, value string) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.PermissionValues(), value)
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
