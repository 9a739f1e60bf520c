package authz

import (
	"context"
	"slices"
	"sync"
)

// Mock answers from fixed lists. AlwaysAllow short-circuits everything;
// otherwise a relation must appear in Allow, and Kinds, when set, limits
// which request kinds may be allowed at all. Every request is kept in Seen.
type Mock struct {
	AlwaysAllow bool
	Allow       []string
	Kinds       []string

	mu   sync.Mutex
	seen []Request
}

func (m *Mock) Check(_ context.Context, req Request) (Decision, error) {
	m.mu.Lock()
	m.seen = append(m.seen, req)
	m.mu.Unlock()

	if m.AlwaysAllow {
		return Decision{Allowed: true}, nil
	}
	if len(m.Kinds) > 0 && !slices.Contains(m.Kinds, req.Kind()) {
		return Decision{Reason: "mock_kind"}, nil
	}
	if slices.Contains(m.Allow, req.Relation) {
		return Decision{Allowed: true}, nil
	}
	return Decision{Reason: "mock_deny"}, nil
}

// Seen returns the requests checked so far.
func (m *Mock) Seen() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.seen)
}
