// Package subjects resolves the subject of a request from a user file or a
// signed bearer token.
package subjects

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/TwigBush/deadbolt-go/pkg/models"
)

//go:embed users.yaml
var defaultUsers []byte

type userRecord struct {
	Identifier  string   `yaml:"identifier"`
	Roles       []string `yaml:"roles"`
	Permissions []string `yaml:"permissions"`
}

type usersFile struct {
	Users []userRecord `yaml:"users"`
}

// Store is a read-only set of subjects keyed by identifier.
type Store struct {
	users map[string]models.Subject
}

// LoadStore reads a users file; an empty path loads the built-in users.
func LoadStore(path string) (*Store, error) {
	b := defaultUsers
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read users: %w", err)
		}
	}
	var f usersFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse users: %w", err)
	}
	s := &Store{users: make(map[string]models.Subject, len(f.Users))}
	for i, u := range f.Users {
		subj, err := models.NewSubject(u.Identifier, u.Roles, u.Permissions)
		if err != nil {
			return nil, fmt.Errorf("user %d: %w", i, err)
		}
		if _, dup := s.users[u.Identifier]; dup {
			return nil, fmt.Errorf("user %q defined twice", u.Identifier)
		}
		s.users[u.Identifier] = subj
	}
	return s, nil
}

func (s *Store) Lookup(id string) (models.Subject, bool) {
	subj, ok := s.users[id]
	return subj, ok
}

func (s *Store) Identifiers() []string {
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
