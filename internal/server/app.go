package server

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/TwigBush/deadbolt-go/internal/authz"
	"github.com/TwigBush/deadbolt-go/internal/config"
	"github.com/TwigBush/deadbolt-go/internal/di"
	"github.com/TwigBush/deadbolt-go/internal/metrics"
	"github.com/TwigBush/deadbolt-go/internal/rbac"
	"github.com/TwigBush/deadbolt-go/internal/subjects"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt/action"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt/filter"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt/view"
	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// App holds the wired deadbolt components of the demo application.
type App struct {
	Logic       *deadbolt.Logic
	Handlers    *deadbolt.HandlerCache
	Composites  *deadbolt.CompositeCache
	Interceptor *action.Interceptor
	Filters     *filter.Constraints
	View        *view.Support
	Store       *subjects.Store
	Tokens      *subjects.TokenSource

	pool *deadbolt.PoolExecutor
}

// NewApp wires the components described by cfg. reg receives the decision
// metrics; nil disables them.
func NewApp(cfg *config.Config, log *slog.Logger, reg prometheus.Registerer) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	j := cfg.Deadbolt.Java
	mode, err := action.ParseConstraintMode(j.ConstraintMode)
	if err != nil {
		return nil, fmt.Errorf("deadbolt.java.constraint-mode: %w", err)
	}

	var rec deadbolt.Recorder = deadbolt.NoopRecorder{}
	if reg != nil {
		rec = metrics.NewPrometheusRecorderWithRegistry(reg)
	}
	logic := deadbolt.NewLogic(
		deadbolt.WithLogger(log),
		deadbolt.WithRecorder(rec),
		deadbolt.WithSubjectCaching(j.CacheUser),
	)

	store, err := subjects.LoadStore(cfg.Subjects.File)
	if err != nil {
		return nil, err
	}
	var tokens *subjects.TokenSource
	if cfg.Subjects.TokenKey != "" {
		tokens = subjects.NewTokenSource([]byte(cfg.Subjects.TokenKey), store)
	}
	policies, err := rbac.Load(cfg.Subjects.PolicyFile)
	if err != nil {
		return nil, err
	}
	az, err := di.ProvideAuthorizer(cfg.Authz)
	if err != nil {
		return nil, err
	}

	h := NewHandler(store, tokens, authz.NewDynamicHandler(az), policies)
	handlers, err := deadbolt.NewHandlerCache(h, map[string]deadbolt.Handler{
		NoSubjectHandlerKey: noSubjectHandler{Handler: h},
	})
	if err != nil {
		return nil, err
	}
	composites := deadbolt.NewCompositeCache()
	if err := RegisterComposites(logic, composites); err != nil {
		return nil, err
	}

	var exec deadbolt.Executor = deadbolt.GoExecutor{}
	var pool *deadbolt.PoolExecutor
	if j.Workers > 0 {
		pool = deadbolt.NewPoolExecutor(j.Workers)
		exec = pool
	}

	return &App{
		Logic:      logic,
		Handlers:   handlers,
		Composites: composites,
		Interceptor: action.New(logic, handlers,
			action.WithComposites(composites),
			action.WithExecutor(exec),
			action.WithConfig(action.Config{
				Blocking:                    j.Blocking,
				BlockingTimeout:             j.BlockingTimeout(),
				Mode:                        mode,
				UnrestrictedBeforeAuthCheck: j.UnrestrictedBeforeAuthCheck,
			})),
		Filters: filter.NewConstraints(logic, composites),
		View: view.NewSupport(logic, handlers,
			view.WithExecutor(exec),
			view.WithDefaultTimeout(j.ViewTimeout()),
			view.WithListener(view.LogListener{Logger: log})),
		Store:  store,
		Tokens: tokens,
		pool:   pool,
	}, nil
}

// Close waits for evaluations still running on the worker pool.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Wait()
	}
}

// Composite constraint names registered by RegisterComposites.
const (
	CompositeCuratorOrFoo     = "curatorOrFoo"
	CompositeSubjectAndZombie = "subjectAndZombie"
)

func RegisterComposites(l *deadbolt.Logic, c *deadbolt.CompositeCache) error {
	curatorOrFoo := l.Pattern(`curator\..*`, models.Regex, "", false).
		Or(l.Restrict(func() models.RoleGroups { return models.ParseRoleGroups([][]string{{"foo"}}) }))
	if err := c.Register(CompositeCuratorOrFoo, curatorOrFoo); err != nil {
		return err
	}
	subjectAndZombie := l.SubjectPresent().And(l.Pattern("killer.undead.zombie", models.Equality, "", false))
	return c.Register(CompositeSubjectAndZombie, subjectAndZombie)
}
