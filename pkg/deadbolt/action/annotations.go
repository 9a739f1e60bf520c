package action

import (
	"fmt"

	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// Annotation declares the constraint guarding a route. Every annotation names
// an optional handler key ("" selects the default handler) and an optional
// content hint passed to OnAuthFailure.
type Annotation interface {
	compile(ic *Interceptor) ([]step, error)
}

// Group is a set of roles that must all be held. A role prefixed with "!"
// must not be held.
type Group []string

// Restrict passes when any of its groups is satisfied.
type Restrict struct {
	Groups     []Group
	HandlerKey string
	Content    string
}

type Pattern struct {
	Value       string
	PatternType models.PatternType
	Meta        string
	Invert      bool
	HandlerKey  string
	Content     string
}

// Patterns stacks several Pattern annotations on one route.
type Patterns []Pattern

type Dynamic struct {
	Name       string
	Meta       string
	HandlerKey string
	Content    string
}

type SubjectPresent struct {
	HandlerKey string
	Content    string
}

type SubjectNotPresent struct {
	HandlerKey string
	Content    string
}

type RoleBasedPermissions struct {
	Name       string
	HandlerKey string
	Content    string
}

// Composite guards a route with a constraint tree, either registered in the
// composite cache under Name or given directly as Constraint.
type Composite struct {
	Name       string
	Constraint deadbolt.Constraint
	HandlerKey string
	Content    string
}

// Unrestricted opens a route, overriding constraints applied after it.
type Unrestricted struct {
	HandlerKey string
	Content    string
}

// step is a compiled annotation.
type step struct {
	label        string
	handler      deadbolt.Handler
	content      string
	constraint   deadbolt.Constraint
	inverted     bool
	unrestricted bool
}

func (a Restrict) compile(ic *Interceptor) ([]step, error) {
	h, err := ic.handlers.GetKey(a.HandlerKey)
	if err != nil {
		return nil, err
	}
	raw := make([][]string, 0, len(a.Groups))
	for _, g := range a.Groups {
		raw = append(raw, g)
	}
	groups := models.ParseRoleGroups(raw)
	return []step{{
		label:      "restrict",
		handler:    h,
		content:    a.Content,
		constraint: ic.logic.Restrict(func() models.RoleGroups { return groups }),
	}}, nil
}

func (a Pattern) compile(ic *Interceptor) ([]step, error) {
	if a.Value == "" {
		return nil, fmt.Errorf("%w: pattern without a value", deadbolt.ErrInvalidAnnotation)
	}
	h, err := ic.handlers.GetKey(a.HandlerKey)
	if err != nil {
		return nil, err
	}
	if a.PatternType == models.Regex {
		// Warm the cache; a malformed pattern still denies at request time.
		if _, err := ic.logic.Patterns().Get(a.Value); err != nil {
			ic.logic.Logger().Warn("route pattern does not compile, requests will be denied", "pattern", a.Value, "err", err)
		}
	}
	return []step{{
		label:      "pattern",
		handler:    h,
		content:    a.Content,
		constraint: ic.logic.Pattern(a.Value, a.PatternType, a.Meta, a.Invert),
	}}, nil
}

func (a Patterns) compile(ic *Interceptor) ([]step, error) {
	var steps []step
	for _, p := range a {
		s, err := p.compile(ic)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s...)
	}
	return steps, nil
}

func (a Dynamic) compile(ic *Interceptor) ([]step, error) {
	if a.Name == "" {
		return nil, fmt.Errorf("%w: dynamic without a name", deadbolt.ErrInvalidAnnotation)
	}
	h, err := ic.handlers.GetKey(a.HandlerKey)
	if err != nil {
		return nil, err
	}
	return []step{{label: "dynamic", handler: h, content: a.Content, constraint: ic.logic.Dynamic(a.Name, a.Meta)}}, nil
}

func (a SubjectPresent) compile(ic *Interceptor) ([]step, error) {
	h, err := ic.handlers.GetKey(a.HandlerKey)
	if err != nil {
		return nil, err
	}
	return []step{{label: "subjectPresent", handler: h, content: a.Content, constraint: ic.logic.SubjectPresent()}}, nil
}

func (a SubjectNotPresent) compile(ic *Interceptor) ([]step, error) {
	h, err := ic.handlers.GetKey(a.HandlerKey)
	if err != nil {
		return nil, err
	}
	return []step{{
		label:      "subjectNotPresent",
		handler:    h,
		content:    a.Content,
		constraint: ic.logic.SubjectPresent(),
		inverted:   true,
	}}, nil
}

func (a RoleBasedPermissions) compile(ic *Interceptor) ([]step, error) {
	if a.Name == "" {
		return nil, fmt.Errorf("%w: role based permissions without a role name", deadbolt.ErrInvalidAnnotation)
	}
	h, err := ic.handlers.GetKey(a.HandlerKey)
	if err != nil {
		return nil, err
	}
	return []step{{
		label:      "roleBasedPermissions",
		handler:    h,
		content:    a.Content,
		constraint: ic.logic.RoleBasedPermissions(a.Name),
	}}, nil
}

func (a Composite) compile(ic *Interceptor) ([]step, error) {
	c := a.Constraint
	switch {
	case a.Name != "" && c != nil:
		return nil, fmt.Errorf("%w: composite %q has both a name and a constraint", deadbolt.ErrInvalidAnnotation, a.Name)
	case a.Name != "":
		if ic.composites == nil {
			return nil, fmt.Errorf("%w: %q (no composite cache configured)", deadbolt.ErrUnknownComposite, a.Name)
		}
		var err error
		if c, err = ic.composites.Lookup(a.Name); err != nil {
			return nil, err
		}
	case c == nil:
		return nil, fmt.Errorf("%w: composite without a name or constraint", deadbolt.ErrInvalidAnnotation)
	}
	h, err := ic.handlers.GetKey(a.HandlerKey)
	if err != nil {
		return nil, err
	}
	label := "composite"
	if a.Name != "" {
		label = "composite:" + a.Name
	}
	return []step{{label: label, handler: h, content: a.Content, constraint: c}}, nil
}

func (a Unrestricted) compile(ic *Interceptor) ([]step, error) {
	h, err := ic.handlers.GetKey(a.HandlerKey)
	if err != nil {
		return nil, err
	}
	return []step{{label: "unrestricted", handler: h, content: a.Content, unrestricted: true}}, nil
}
