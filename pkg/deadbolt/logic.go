package deadbolt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// Logic builds the primitive constraints and owns the collaborators they
// share. A Logic is safe for concurrent use.
type Logic struct {
	patterns  *PatternCache
	log       *slog.Logger
	rec       Recorder
	cacheUser bool
}

type Option func(*Logic)

func WithLogger(l *slog.Logger) Option { return func(c *Logic) { c.log = l } }

func WithRecorder(r Recorder) Option { return func(c *Logic) { c.rec = r } }

func WithPatternCache(p *PatternCache) Option { return func(c *Logic) { c.patterns = p } }

// WithSubjectCaching memoizes the subject for the lifetime of a request.
func WithSubjectCaching(enabled bool) Option { return func(c *Logic) { c.cacheUser = enabled } }

func NewLogic(opts ...Option) *Logic {
	l := &Logic{}
	for _, o := range opts {
		o(l)
	}
	if l.log == nil {
		l.log = slog.Default()
	}
	if l.rec == nil {
		l.rec = NoopRecorder{}
	}
	if l.patterns == nil {
		l.patterns = NewPatternCache(l.rec)
	}
	return l
}

func (l *Logic) Patterns() *PatternCache { return l.patterns }

func (l *Logic) Logger() *slog.Logger { return l.log }

func (l *Logic) Recorder() Recorder { return l.rec }

// SubjectPresent passes when the handler yields a subject.
func (l *Logic) SubjectPresent() Constraint {
	return func(ctx context.Context, h Handler) (bool, error) {
		s, err := l.subject(ctx, h)
		if err != nil {
			return false, err
		}
		return s != nil, nil
	}
}

// Restrict passes when the subject satisfies any of the role groups. groups
// is called at most once per evaluation, and only when a subject is present.
func (l *Logic) Restrict(groups func() models.RoleGroups) Constraint {
	return func(ctx context.Context, h Handler) (bool, error) {
		s, err := l.subject(ctx, h)
		if err != nil || s == nil {
			return false, err
		}
		return groups().Satisfied(s), nil
	}
}

// Pattern matches the subject's permissions against value. invert flips the
// match, but a missing subject denies for EQUALITY and REGEX either way.
func (l *Logic) Pattern(value string, patternType models.PatternType, meta string, invert bool) Constraint {
	return func(ctx context.Context, h Handler) (bool, error) {
		var matched bool
		switch patternType {
		case models.Custom:
			drh, err := h.GetDynamicResourceHandler(ctx)
			if err != nil || drh == nil {
				return false, err
			}
			matched, err = drh.CheckPermission(ctx, value, meta, h)
			if err != nil {
				return false, fmt.Errorf("check permission %q: %w", value, err)
			}
		case models.Equality, models.Regex:
			s, err := l.subject(ctx, h)
			if err != nil || s == nil {
				return false, err
			}
			if patternType == models.Equality {
				matched = models.HasPermission(s, value)
				break
			}
			re, err := l.patterns.Get(value)
			if err != nil {
				return false, err
			}
			for _, p := range s.PermissionValues() {
				if re.MatchString(p) {
					matched = true
					break
				}
			}
		default:
			return false, fmt.Errorf("%w: %v", ErrUnknownPatternType, patternType)
		}
		return matched != invert, nil
	}
}

// Dynamic asks the DynamicResourceHandler whether the named resource is allowed.
func (l *Logic) Dynamic(name, meta string) Constraint {
	return func(ctx context.Context, h Handler) (bool, error) {
		drh, err := h.GetDynamicResourceHandler(ctx)
		if err != nil || drh == nil {
			return false, err
		}
		ok, err := drh.IsAllowed(ctx, name, meta, h)
		if err != nil {
			return false, fmt.Errorf("is allowed %q: %w", name, err)
		}
		return ok, nil
	}
}

// RoleBasedPermissions passes when any subject permission fully matches one of
// the patterns the handler associates with roleName. No patterns means deny.
func (l *Logic) RoleBasedPermissions(roleName string) Constraint {
	return func(ctx context.Context, h Handler) (bool, error) {
		s, err := l.subject(ctx, h)
		if err != nil || s == nil {
			return false, err
		}
		patterns, err := h.GetPermissionsForRole(ctx, roleName)
		if err != nil {
			return false, fmt.Errorf("permissions for role %q: %w", roleName, err)
		}
		held := s.PermissionValues()
		for _, src := range patterns {
			re, err := l.patterns.Get(src)
			if err != nil {
				return false, err
			}
			for _, p := range held {
				if re.MatchString(p) {
					return true, nil
				}
			}
		}
		return false, nil
	}
}

func (l *Logic) subject(ctx context.Context, h Handler) (models.Subject, error) {
	st := stateFrom(ctx)
	if !l.cacheUser || st == nil {
		return l.fetchSubject(ctx, h)
	}
	if s, ok := st.cachedSubject(); ok {
		return s, nil
	}
	s, err := l.fetchSubject(ctx, h)
	if err != nil {
		return nil, err
	}
	st.storeSubject(s)
	return s, nil
}

func (l *Logic) fetchSubject(ctx context.Context, h Handler) (models.Subject, error) {
	s, err := h.GetSubject(ctx)
	if err != nil {
		return nil, fmt.Errorf("get subject: %w", err)
	}
	return s, nil
}
