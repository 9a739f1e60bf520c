// Package action guards chi routes with constraint annotations.
package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
)

// ConstraintMode decides whether every annotation on a route is evaluated or
// only the first one that authorises the request.
type ConstraintMode string

const (
	ProcessAll                 ConstraintMode = "process-all"
	ProcessFirstConstraintOnly ConstraintMode = "process-first-constraint-only"
)

func ParseConstraintMode(s string) (ConstraintMode, error) {
	switch ConstraintMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ProcessAll:
		return ProcessAll, nil
	case ProcessFirstConstraintOnly:
		return ProcessFirstConstraintOnly, nil
	default:
		return "", fmt.Errorf("unknown constraint mode %q", s)
	}
}

// attrUnrestricted prefixes the request attribute set by Unrestricted. Each
// Wrap appends its own sequence number so the bypass stays within that Wrap.
const attrUnrestricted = "deadbolt.action.unrestricted"

type Config struct {
	// Blocking evaluates on the executor and denies once BlockingTimeout passes.
	Blocking        bool
	BlockingTimeout time.Duration
	Mode            ConstraintMode
	// UnrestrictedBeforeAuthCheck runs BeforeAuthCheck on unrestricted routes.
	UnrestrictedBeforeAuthCheck bool
}

const defaultBlockingTimeout = time.Second

type Interceptor struct {
	logic      *deadbolt.Logic
	handlers   *deadbolt.HandlerCache
	composites *deadbolt.CompositeCache
	exec       deadbolt.Executor
	cfg        Config
	log        *slog.Logger

	wraps atomic.Uint64
}

type Option func(*Interceptor)

func WithComposites(c *deadbolt.CompositeCache) Option {
	return func(ic *Interceptor) { ic.composites = c }
}

func WithExecutor(ex deadbolt.Executor) Option { return func(ic *Interceptor) { ic.exec = ex } }

func WithConfig(cfg Config) Option { return func(ic *Interceptor) { ic.cfg = cfg } }

func New(logic *deadbolt.Logic, handlers *deadbolt.HandlerCache, opts ...Option) *Interceptor {
	if logic == nil {
		logic = deadbolt.NewLogic()
	}
	ic := &Interceptor{logic: logic, handlers: handlers}
	for _, o := range opts {
		o(ic)
	}
	if ic.exec == nil {
		ic.exec = deadbolt.GoExecutor{}
	}
	if ic.cfg.Mode == "" {
		ic.cfg.Mode = ProcessAll
	}
	if ic.cfg.BlockingTimeout <= 0 {
		ic.cfg.BlockingTimeout = defaultBlockingTimeout
	}
	ic.log = logic.Logger()
	return ic
}

// Config returns the settings the interceptor was built with.
func (ic *Interceptor) Config() Config { return ic.cfg }

// Wrap compiles annotations into chi middleware. They run in the order given;
// a malformed annotation is reported here rather than per request.
func (ic *Interceptor) Wrap(annotations ...Annotation) (func(http.Handler) http.Handler, error) {
	if ic.handlers == nil {
		return nil, deadbolt.ErrNoDefaultHandler
	}
	var steps []step
	for _, a := range annotations {
		if a == nil {
			return nil, fmt.Errorf("%w: nil annotation", deadbolt.ErrInvalidAnnotation)
		}
		s, err := a.compile(ic)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s...)
	}
	scope := fmt.Sprintf("%s.%d", attrUnrestricted, ic.wraps.Add(1))
	return func(next http.Handler) http.Handler {
		h := next
		for i := len(steps) - 1; i >= 0; i-- {
			h = ic.guard(steps[i], scope, h)
		}
		return h
	}, nil
}

// Must is Wrap for route tables built at startup. It panics on a bad annotation.
func (ic *Interceptor) Must(annotations ...Annotation) func(http.Handler) http.Handler {
	mw, err := ic.Wrap(annotations...)
	if err != nil {
		panic(err)
	}
	return mw
}

func (ic *Interceptor) guard(s step, scope string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = deadbolt.Bind(r)
		ctx := r.Context()

		if s.unrestricted {
			ic.unrestricted(w, r, s, scope, next)
			return
		}
		if isUnrestricted(ctx, scope) {
			next.ServeHTTP(w, r)
			return
		}
		if ic.cfg.Mode == ProcessFirstConstraintOnly && deadbolt.IsAuthorised(ctx) {
			next.ServeHTTP(w, r)
			return
		}

		result, err := ic.decide(ctx, s, next)
		if err != nil {
			ic.log.ErrorContext(ctx, "auth failure handler failed", "constraint", s.label, "err", err)
			result = deadbolt.Unauthorized(s.content)
		}
		if result == nil {
			result = deadbolt.Unauthorized(s.content)
		}
		result.ServeHTTP(w, r)
	})
}

func (ic *Interceptor) unrestricted(w http.ResponseWriter, r *http.Request, s step, scope string, next http.Handler) {
	ctx := r.Context()
	if ic.cfg.UnrestrictedBeforeAuthCheck {
		pre, err := s.handler.BeforeAuthCheck(ctx)
		if err != nil {
			ic.log.WarnContext(ctx, "before auth check failed, denying", "constraint", s.label, "err", err)
			ic.fail(w, r, s)
			return
		}
		if pre != nil {
			pre.ServeHTTP(w, r)
			return
		}
	}
	deadbolt.SetAttr(ctx, scope, true)
	deadbolt.MarkAuthorised(ctx)
	next.ServeHTTP(w, r)
}

func isUnrestricted(ctx context.Context, scope string) bool {
	v, _ := deadbolt.Attr(ctx, scope)
	b, _ := v.(bool)
	return b
}

func (ic *Interceptor) fail(w http.ResponseWriter, r *http.Request, s step) {
	res, err := s.handler.OnAuthFailure(r.Context(), s.content)
	if err != nil || res == nil {
		res = deadbolt.Unauthorized(s.content)
	}
	res.ServeHTTP(w, r)
}

func (ic *Interceptor) decide(ctx context.Context, s step, next http.Handler) (http.Handler, error) {
	o := deadbolt.HTTPOutcome(next)
	o.Label = s.label
	o.Allow = func(ctx context.Context) (http.Handler, error) {
		deadbolt.MarkAuthorised(ctx)
		return next, nil
	}
	if s.inverted {
		o = o.Inverted()
	}
	eval := func(ctx context.Context) (http.Handler, error) {
		return deadbolt.Evaluate(ctx, ic.logic, s.handler, s.content, s.constraint, o)
	}
	if !ic.cfg.Blocking {
		return eval(ctx)
	}

	tctx, cancel := context.WithTimeout(ctx, ic.cfg.BlockingTimeout)
	defer cancel()
	res, err := deadbolt.Await(tctx, ic.exec, eval)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		ic.log.WarnContext(ctx, "constraint timed out, denying", "constraint", s.label, "timeout", ic.cfg.BlockingTimeout)
		ic.logic.Recorder().RecordEvaluationError(s.label)
		return s.handler.OnAuthFailure(ctx, s.content)
	}
	return res, err
}
