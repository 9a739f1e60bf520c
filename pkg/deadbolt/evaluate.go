package deadbolt

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sourcegraph/conc/panics"

	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// Outcome holds the continuations of an evaluation. Exactly one of them
// produces the terminal result.
type Outcome[T any] struct {
	// Label names the check in logs and metrics.
	Label string
	Allow func(ctx context.Context) (T, error)
	Deny  func(ctx context.Context, h Handler, content string) (T, error)
	// PreAuth converts a BeforeAuthCheck result. When nil the zero T is returned.
	PreAuth func(ctx context.Context, result http.Handler) (T, error)

	inverted bool
}

// Inverted swaps the polarity of o: a passing constraint selects Deny and a
// failing one selects Allow. Evaluation errors still select Deny.
func (o Outcome[T]) Inverted() Outcome[T] {
	o.inverted = !o.inverted
	return o
}

func (o Outcome[T]) withLabel(label string) Outcome[T] {
	if o.Label == "" {
		o.Label = label
	}
	return o
}

// HTTPOutcome continues with next on allow and renders the handler's
// OnAuthFailure on deny.
func HTTPOutcome(next http.Handler) Outcome[http.Handler] {
	return Outcome[http.Handler]{
		Allow: func(context.Context) (http.Handler, error) { return next, nil },
		Deny: func(ctx context.Context, h Handler, content string) (http.Handler, error) {
			return h.OnAuthFailure(ctx, content)
		},
		PreAuth: func(_ context.Context, result http.Handler) (http.Handler, error) { return result, nil },
	}
}

// BoolOutcome reports the decision as a bool. A pre-auth short-circuit is false.
func BoolOutcome() Outcome[bool] {
	return Outcome[bool]{
		Allow: func(context.Context) (bool, error) { return true, nil },
		Deny:  func(context.Context, Handler, string) (bool, error) { return false, nil },
	}
}

var std = NewLogic()

// Evaluate runs the uniform orchestration: BeforeAuthCheck, then c, then the
// continuation selected by the result. Failures in BeforeAuthCheck or c deny.
// The returned error comes only from the continuation that ran.
func Evaluate[T any](ctx context.Context, l *Logic, h Handler, content string, c Constraint, o Outcome[T]) (T, error) {
	if l == nil {
		l = std
	}
	label := o.Label
	if label == "" {
		label = "constraint"
	}

	pre, err := h.BeforeAuthCheck(ctx)
	if err != nil {
		l.log.WarnContext(ctx, "before auth check failed, denying", "constraint", label, "err", err)
		l.rec.RecordEvaluationError(label)
		return deny(ctx, h, content, o)
	}
	if pre != nil {
		l.log.DebugContext(ctx, "before auth check short-circuited", "constraint", label)
		l.rec.RecordPreAuthShortCircuit(label)
		if o.PreAuth == nil {
			var zero T
			return zero, nil
		}
		return o.PreAuth(ctx, pre)
	}

	passed, err := l.Test(ctx, h, c)
	if err != nil {
		l.log.WarnContext(ctx, "constraint evaluation failed, denying", "constraint", label, "err", err)
		l.rec.RecordEvaluationError(label)
		return deny(ctx, h, content, o)
	}
	allowed := passed != o.inverted
	l.rec.RecordDecision(label, allowed)
	if allowed {
		if o.Allow == nil {
			var zero T
			return zero, nil
		}
		return o.Allow(ctx)
	}
	return deny(ctx, h, content, o)
}

// Test runs c without the pre-auth hook, turning a panic into an error.
func (l *Logic) Test(ctx context.Context, h Handler, c Constraint) (passed bool, err error) {
	var pc panics.Catcher
	pc.Try(func() { passed, err = c(ctx, h) })
	if rec := pc.Recovered(); rec != nil {
		return false, fmt.Errorf("%w: %v", ErrConstraintPanic, rec.Value)
	}
	return passed, err
}

func deny[T any](ctx context.Context, h Handler, content string, o Outcome[T]) (T, error) {
	if o.Deny == nil {
		var zero T
		return zero, nil
	}
	return o.Deny(ctx, h, content)
}

// SubjectPresent allows when the handler supplies a subject.
func SubjectPresent[T any](ctx context.Context, l *Logic, h Handler, content string, o Outcome[T]) (T, error) {
	l = orStd(l)
	return Evaluate(ctx, l, h, content, l.SubjectPresent(), o.withLabel("subjectPresent"))
}

// SubjectNotPresent is SubjectPresent with its continuations swapped.
func SubjectNotPresent[T any](ctx context.Context, l *Logic, h Handler, content string, o Outcome[T]) (T, error) {
	l = orStd(l)
	return Evaluate(ctx, l, h, content, l.SubjectPresent(), o.withLabel("subjectNotPresent").Inverted())
}

// Restrict allows when the subject satisfies at least one role group.
func Restrict[T any](ctx context.Context, l *Logic, h Handler, content string, groups func() models.RoleGroups, o Outcome[T]) (T, error) {
	l = orStd(l)
	return Evaluate(ctx, l, h, content, l.Restrict(groups), o.withLabel("restrict"))
}

// Pattern allows when a subject permission matches value under patternType.
func Pattern[T any](ctx context.Context, l *Logic, h Handler, content, value string, patternType models.PatternType, meta string, invert bool, o Outcome[T]) (T, error) {
	l = orStd(l)
	return Evaluate(ctx, l, h, content, l.Pattern(value, patternType, meta, invert), o.withLabel("pattern"))
}

// Dynamic defers to the handler's DynamicResourceHandler for name and meta.
func Dynamic[T any](ctx context.Context, l *Logic, h Handler, content, name, meta string, o Outcome[T]) (T, error) {
	l = orStd(l)
	return Evaluate(ctx, l, h, content, l.Dynamic(name, meta), o.withLabel("dynamic"))
}

// RoleBasedPermissions allows when a subject permission matches a pattern
// granted to roleName.
func RoleBasedPermissions[T any](ctx context.Context, l *Logic, h Handler, content, roleName string, o Outcome[T]) (T, error) {
	l = orStd(l)
	return Evaluate(ctx, l, h, content, l.RoleBasedPermissions(roleName), o.withLabel("roleBasedPermissions"))
}

func orStd(l *Logic) *Logic {
	if l == nil {
		return std
	}
	return l
}
