package subjects

import (
	"errors"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwt"
	"github.com/mitchellh/mapstructure"

	"github.com/TwigBush/deadbolt-go/pkg/models"
)

var ErrNoSubjectClaim = errors.New("token has no sub claim")

// TokenSource turns HS256 bearer tokens into subjects. Roles and permissions
// come from the "roles" and "permissions" claims; a token without them is
// resolved through the store by its sub claim.
type TokenSource struct {
	key   []byte
	store *Store
}

func NewTokenSource(key []byte, store *Store) *TokenSource {
	return &TokenSource{key: key, store: store}
}

func (ts *TokenSource) Subject(raw string) (models.Subject, error) {
	tok, err := jwt.Parse([]byte(raw), jwt.WithKey(jwa.HS256(), ts.key))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	sub, ok := tok.Subject()
	if !ok || sub == "" {
		return nil, ErrNoSubjectClaim
	}

	roles, hasRoles, err := stringsClaim(tok, "roles")
	if err != nil {
		return nil, err
	}
	perms, hasPerms, err := stringsClaim(tok, "permissions")
	if err != nil {
		return nil, err
	}
	if !hasRoles && !hasPerms && ts.store != nil {
		if s, ok := ts.store.Lookup(sub); ok {
			return s, nil
		}
	}
	return models.NewSubject(sub, roles, perms)
}

// Issue signs a token for s. It backs the check command and tests.
func (ts *TokenSource) Issue(s models.Subject) (string, error) {
	tok, err := jwt.NewBuilder().
		Subject(s.Identifier()).
		Claim("roles", s.RoleNames()).
		Claim("permissions", s.PermissionValues()).
		Build()
	if err != nil {
		return "", fmt.Errorf("build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256(), ts.key))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return string(signed), nil
}

func stringsClaim(tok jwt.Token, name string) ([]string, bool, error) {
	if !tok.Has(name) {
		return nil, false, nil
	}
	var raw any
	if err := tok.Get(name, &raw); err != nil {
		return nil, false, fmt.Errorf("claim %s: %w", name, err)
	}
	var out []string
	if err := mapstructure.Decode(raw, &out); err != nil {
		return nil, false, fmt.Errorf("claim %s: %w", name, err)
	}
	return out, true, nil
}
