package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSubject_CollapsesDuplicates(t *testing.T) {
	t.Parallel()

	s, err := NewSubject("greet", []string{"admin", "admin", "root"}, []string{"a.b", "a.b"})
	require.NoError(t, err)
	assert.Equal(t, "greet", s.Identifier())
	assert.Equal(t, []string{"admin", "root"}, s.RoleNames())
	assert.Equal(t, []string{"a.b"}, s.PermissionValues())
}

func TestNewSubject_RejectsEmptyIdentifier(t *testing.T) {
	t.Parallel()

	_, err := NewSubject("", nil, nil)
	require.ErrorIs(t, err, ErrEmptyIdentifier)
}

func TestSubject_ReturnsCopies(t *testing.T) {
	t.Parallel()

	s, err := NewSubject("lotte", []string{"admin"}, nil)
	require.NoError(t, err)
	s.RoleNames()[0] = "mutated"
	assert.True(t, HasRole(s, "admin"))
}

func TestRoleGroups_Satisfied(t *testing.T) {
	t.Parallel()

	groups := ParseRoleGroups([][]string{{"admin"}, {"auditor", "root"}})

	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"second group complete", []string{"auditor", "root"}, true},
		{"second group partial", []string{"auditor"}, false},
		{"first group", []string{"admin"}, true},
		{"no roles", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSubject("u", tt.roles, nil)
			require.NoError(t, err)
			if got := groups.Satisfied(s); got != tt.want {
				t.Fatalf("Satisfied(%v) = %v, want %v", tt.roles, got, tt.want)
			}
		})
	}
}

func TestRoleGroups_Negation(t *testing.T) {
	t.Parallel()

	groups := ParseRoleGroups([][]string{{"foo", "!bar"}})
	withBar, _ := NewSubject("a", []string{"foo", "bar"}, nil)
	withoutBar, _ := NewSubject("b", []string{"foo"}, nil)

	assert.False(t, groups.Satisfied(withBar))
	assert.True(t, groups.Satisfied(withoutBar))
	assert.Equal(t, RoleCheck{Name: "bar", Negated: true}, groups[0][1])
	assert.Equal(t, "!bar", groups[0][1].String())
}

func TestRoleGroups_EmptyAndNil(t *testing.T) {
	t.Parallel()

	s, _ := NewSubject("a", []string{"foo"}, nil)
	assert.False(t, RoleGroups{}.Satisfied(s), "empty outer list denies")
	assert.True(t, RoleGroups{RoleGroup{}}.Satisfied(s), "empty inner group is vacuous")
	assert.False(t, ParseRoleGroups([][]string{{"foo"}}).Satisfied(nil))
}

func TestPatternType_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, pt := range []PatternType{Equality, Regex, Custom} {
		b, err := pt.MarshalText()
		require.NoError(t, err)
		var got PatternType
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, pt, got)
	}

	_, err := ParsePatternType("glob")
	assert.Error(t, err)
	got, err := ParsePatternType("regex")
	require.NoError(t, err)
	assert.Equal(t, Regex, got)
}
