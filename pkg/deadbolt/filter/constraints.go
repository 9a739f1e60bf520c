// Package filter builds request filters that apply constraints ahead of route
// handlers.
package filter

import (
	"context"
	"net/http"

	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// FilterFunction decides what serves r: next when the constraint passes, the
// handler's auth failure result when it does not, or a BeforeAuthCheck result.
type FilterFunction func(ctx context.Context, r *http.Request, h deadbolt.Handler, next http.Handler) (http.Handler, error)

// Constraints builds FilterFunctions. The content argument of every builder is
// the hint passed to OnAuthFailure and may be "".
type Constraints struct {
	logic      *deadbolt.Logic
	composites *deadbolt.CompositeCache
}

func NewConstraints(logic *deadbolt.Logic, composites *deadbolt.CompositeCache) *Constraints {
	if logic == nil {
		logic = deadbolt.NewLogic()
	}
	if composites == nil {
		composites = deadbolt.NewCompositeCache()
	}
	return &Constraints{logic: logic, composites: composites}
}

func (c *Constraints) SubjectPresent(content string) FilterFunction {
	return c.build("subjectPresent", c.logic.SubjectPresent(), false, content)
}

func (c *Constraints) SubjectNotPresent(content string) FilterFunction {
	return c.build("subjectNotPresent", c.logic.SubjectPresent(), true, content)
}

// Restrict passes when any of groups is fully held by the subject.
func (c *Constraints) Restrict(groups [][]string, content string) FilterFunction {
	parsed := models.ParseRoleGroups(groups)
	return c.build("restrict", c.logic.Restrict(func() models.RoleGroups { return parsed }), false, content)
}

func (c *Constraints) Pattern(value string, patternType models.PatternType, meta string, invert bool, content string) FilterFunction {
	return c.build("pattern", c.logic.Pattern(value, patternType, meta, invert), false, content)
}

func (c *Constraints) Dynamic(name, meta, content string) FilterFunction {
	return c.build("dynamic", c.logic.Dynamic(name, meta), false, content)
}

func (c *Constraints) RoleBasedPermissions(roleName, content string) FilterFunction {
	return c.build("roleBasedPermissions", c.logic.RoleBasedPermissions(roleName), false, content)
}

// Composite applies the constraint registered under name. An unknown name is
// reported now, not when a request arrives.
func (c *Constraints) Composite(name, content string) (FilterFunction, error) {
	constraint, err := c.composites.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c.build("composite:"+name, constraint, false, content), nil
}

// MustComposite is like Composite but panics on an unknown name.
func (c *Constraints) MustComposite(name, content string) FilterFunction {
	f, err := c.Composite(name, content)
	if err != nil {
		panic(err)
	}
	return f
}

func (c *Constraints) CompositeOf(constraint deadbolt.Constraint, content string) FilterFunction {
	return c.build("composite", constraint, false, content)
}

func (c *Constraints) build(label string, constraint deadbolt.Constraint, inverted bool, content string) FilterFunction {
	return func(ctx context.Context, r *http.Request, h deadbolt.Handler, next http.Handler) (http.Handler, error) {
		ctx = deadbolt.WithRequest(ctx, r)
		o := deadbolt.HTTPOutcome(next)
		o.Label = label
		o.Allow = func(ctx context.Context) (http.Handler, error) {
			deadbolt.MarkAuthorised(ctx)
			return next, nil
		}
		if inverted {
			o = o.Inverted()
		}
		return deadbolt.Evaluate(ctx, c.logic, h, content, constraint, o)
	}
}
