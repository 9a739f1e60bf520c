// Package rbac maps role names to the permission patterns they grant, backed
// by a casbin enforcer so roles can inherit from other roles.
package rbac

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var modelContent string

//go:embed policy.csv
var defaultPolicy []byte

type Policies struct {
	e *casbin.SyncedEnforcer
}

// Load reads a policy file; an empty path loads the built-in policies.
func Load(path string) (*Policies, error) {
	b := defaultPolicy
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read policy: %w", err)
		}
	}

	m, err := model.NewModelFromString(modelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	p := &Policies{e: e}
	if err := p.load(b); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Policies) load(b []byte) error {
	sc := bufio.NewScanner(bytes.NewReader(b))
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) != 3 {
			return fmt.Errorf("policy line %d: want 3 fields, got %d", n, len(fields))
		}
		var err error
		switch fields[0] {
		case "p":
			_, err = p.e.AddPolicy(fields[1], fields[2])
		case "g":
			_, err = p.e.AddGroupingPolicy(fields[1], fields[2])
		default:
			err = fmt.Errorf("unknown policy type %q", fields[0])
		}
		if err != nil {
			return fmt.Errorf("policy line %d: %w", n, err)
		}
	}
	return sc.Err()
}

// PermissionsForRole lists the patterns granted to role, including those of
// roles it inherits. An unknown role has none.
func (p *Policies) PermissionsForRole(role string) ([]string, error) {
	perms, err := p.e.GetImplicitPermissionsForUser(role)
	if err != nil {
		return nil, fmt.Errorf("permissions for %q: %w", role, err)
	}
	out := make([]string, 0, len(perms))
	for _, rule := range perms {
		if len(rule) > 1 {
			out = append(out, rule[1])
		}
	}
	return out, nil
}

// Allowed reports whether role grants permission.
func (p *Policies) Allowed(role, permission string) (bool, error) {
	return p.e.Enforce(role, permission)
}
