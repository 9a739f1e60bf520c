// Package view answers constraint questions from templates. Each check blocks
// for at most a timeout and reports false when it runs out.
package view

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strings"
	"time"

	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
	"github.com/TwigBush/deadbolt-go/pkg/models"
)

const DefaultTimeout = 1000 * time.Millisecond

type Support struct {
	logic          *deadbolt.Logic
	handlers       *deadbolt.HandlerCache
	exec           deadbolt.Executor
	listener       TemplateFailureListener
	defaultTimeout time.Duration
	log            *slog.Logger
}

type Option func(*Support)

func WithExecutor(ex deadbolt.Executor) Option { return func(s *Support) { s.exec = ex } }

func WithListener(l TemplateFailureListener) Option { return func(s *Support) { s.listener = l } }

// WithDefaultTimeout sets the timeout used when a check passes one <= 0.
func WithDefaultTimeout(d time.Duration) Option { return func(s *Support) { s.defaultTimeout = d } }

func NewSupport(logic *deadbolt.Logic, handlers *deadbolt.HandlerCache, opts ...Option) *Support {
	if logic == nil {
		logic = deadbolt.NewLogic()
	}
	s := &Support{logic: logic, handlers: handlers}
	for _, o := range opts {
		o(s)
	}
	if s.exec == nil {
		s.exec = deadbolt.GoExecutor{}
	}
	if s.defaultTimeout <= 0 {
		s.defaultTimeout = DefaultTimeout
	}
	s.log = logic.Logger()
	if s.listener == nil {
		s.listener = LogListener{Logger: s.log}
	}
	return s
}

// ViewRestrict reports whether the subject holds every role of any group.
// A nil h selects the default handler.
func (s *Support) ViewRestrict(ctx context.Context, groups [][]string, h deadbolt.Handler, timeout time.Duration) bool {
	parsed := models.ParseRoleGroups(groups)
	return s.check(ctx, "restrict", h, timeout, s.logic.Restrict(func() models.RoleGroups { return parsed }), false)
}

func (s *Support) ViewDynamic(ctx context.Context, name, meta string, h deadbolt.Handler, timeout time.Duration) bool {
	return s.check(ctx, "dynamic", h, timeout, s.logic.Dynamic(name, meta), false)
}

func (s *Support) ViewPattern(ctx context.Context, value string, patternType models.PatternType, meta string, invert bool, h deadbolt.Handler, timeout time.Duration) bool {
	return s.check(ctx, "pattern", h, timeout, s.logic.Pattern(value, patternType, meta, invert), false)
}

func (s *Support) ViewSubjectPresent(ctx context.Context, h deadbolt.Handler, timeout time.Duration) bool {
	return s.check(ctx, "subjectPresent", h, timeout, s.logic.SubjectPresent(), false)
}

func (s *Support) ViewSubjectNotPresent(ctx context.Context, h deadbolt.Handler, timeout time.Duration) bool {
	return s.check(ctx, "subjectNotPresent", h, timeout, s.logic.SubjectPresent(), true)
}

func (s *Support) ViewRoleBasedPermissions(ctx context.Context, roleName string, h deadbolt.Handler, timeout time.Duration) bool {
	return s.check(ctx, "roleBasedPermissions", h, timeout, s.logic.RoleBasedPermissions(roleName), false)
}

func (s *Support) check(ctx context.Context, label string, h deadbolt.Handler, timeout time.Duration, c deadbolt.Constraint, inverted bool) bool {
	if s.handlers != nil {
		h = s.handlers.Resolve(h)
	}
	if h == nil {
		h = deadbolt.BaseHandler{}
	}
	if timeout <= 0 {
		timeout = s.defaultTimeout
	}
	o := deadbolt.BoolOutcome()
	o.Label = "view:" + label
	if inverted {
		o = o.Inverted()
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ok, err := deadbolt.Await(tctx, s.exec, func(ctx context.Context) (bool, error) {
		return deadbolt.Evaluate(ctx, s.logic, h, "", c, o)
	})
	switch {
	case err == nil:
		return ok
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		msg := fmt.Sprintf("view %s check timed out after %s", label, timeout)
		s.log.ErrorContext(ctx, msg, "constraint", label, "timeout", timeout)
		s.logic.Recorder().RecordViewTimeout()
		s.listener.Failure(msg, timeout)
	default:
		s.log.WarnContext(ctx, "view check failed", "constraint", label, "err", err)
	}
	return false
}

// FuncMap binds checks against the default handler and timeout to ctx, for
// use in html/template:
//
//	{{if restrict "foo,bar" "hurdy"}}...{{end}}
//	{{if pattern "killer.undead.*" "REGEX" false}}...{{end}}
func (s *Support) FuncMap(ctx context.Context) template.FuncMap {
	return template.FuncMap{
		"subjectPresent":    func() bool { return s.ViewSubjectPresent(ctx, nil, 0) },
		"subjectNotPresent": func() bool { return s.ViewSubjectNotPresent(ctx, nil, 0) },
		"restrict": func(groups ...string) bool {
			parsed := make([][]string, 0, len(groups))
			for _, g := range groups {
				parsed = append(parsed, splitGroup(g))
			}
			return s.ViewRestrict(ctx, parsed, nil, 0)
		},
		"pattern": func(value, patternType string, invert bool) (bool, error) {
			pt, err := models.ParsePatternType(patternType)
			if err != nil {
				return false, err
			}
			return s.ViewPattern(ctx, value, pt, "", invert, nil, 0), nil
		},
		"dynamic":              func(name, meta string) bool { return s.ViewDynamic(ctx, name, meta, nil, 0) },
		"roleBasedPermissions": func(role string) bool { return s.ViewRoleBasedPermissions(ctx, role, nil, 0) },
	}
}

func splitGroup(g string) []string {
	var roles []string
	for _, r := range strings.Split(g, ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}
