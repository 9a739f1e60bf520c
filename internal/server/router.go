package server

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/TwigBush/deadbolt-go/internal/httpx"
	mw2 "github.com/TwigBush/deadbolt-go/internal/mw"
	"github.com/TwigBush/deadbolt-go/internal/version"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt/action"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt/filter"
	"github.com/TwigBush/deadbolt-go/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var viewTemplate = template.Must(template.New("view.html").
	Funcs(template.FuncMap{
		"subjectPresent":       func() bool { return false },
		"subjectNotPresent":    func() bool { return false },
		"restrict":             func(...string) bool { return false },
		"pattern":              func(string, string, bool) (bool, error) { return false, nil },
		"dynamic":              func(string, string) bool { return false },
		"roleBasedPermissions": func(string) bool { return false },
	}).
	ParseFS(templateFS, "templates/view.html"))

type Options struct {
	CORSOrigins []string
	DevNoStore  bool
}

// content is what every protected demo route serves once allowed.
var content = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("Content accessible"))
})

// BuildRouter serves the demo routes twice: under /action through the
// interceptor and under /filter through the route table.
func BuildRouter(app *App, opts Options, mw ...func(http.Handler) http.Handler) (http.Handler, error) {
	r := chi.NewRouter()
	r.Use(mw2.CacheControl(opts.DevNoStore))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	for _, m := range mw {
		r.Use(m)
	}

	r.Use(mw2.Trace())
	r.Use(mw2.Logger(mw2.LogOpts{
		Logger:    app.Logic.Logger(),
		SkipPaths: []string{"/healthz", "/version", "/.well-known/deadbolt"},
	}))

	r.Get("/healthz", healthCheckHandler)
	r.Get("/version", versionHandler)
	r.Get("/.well-known/deadbolt", DiscoveryHandler(app))

	r.Route("/action", func(r chi.Router) { mountActions(r, app.Interceptor) })

	routes, err := filterRoutes(app)
	if err != nil {
		return nil, err
	}
	r.Route("/filter", func(r chi.Router) {
		r.Use(routes.Middleware)
		r.Get("/*", content)
	})

	r.Get("/view", viewHandler(app))
	return r, nil
}

func mountActions(r chi.Router, ic *action.Interceptor) {
	r.With(ic.Must(action.Restrict{Groups: []action.Group{{"foo", "bar"}}})).Get("/restrict/foo-and-bar", content)
	r.With(ic.Must(action.Restrict{Groups: []action.Group{{"foo"}, {"hurdy"}}})).Get("/restrict/foo-or-hurdy", content)
	r.With(ic.Must(action.Restrict{Groups: []action.Group{{"foo", "!bar"}}})).Get("/restrict/foo-not-bar", content)

	r.With(ic.Must(action.Pattern{Value: "killer.undead.zombie"})).Get("/pattern/equality", content)
	r.With(ic.Must(action.Pattern{Value: "killer.undead.zombie", Invert: true})).Get("/pattern/invert/equality", content)
	r.With(ic.Must(action.Pattern{Value: `killer\.undead\..*`, PatternType: models.Regex})).Get("/pattern/regex", content)
	r.With(ic.Must(action.Pattern{Value: `killer\.undead\..*`, PatternType: models.Regex, Invert: true})).Get("/pattern/invert/regex", content)
	r.With(ic.Must(action.Pattern{Value: `"jagged.edge" in permissions`, PatternType: models.Custom})).Get("/pattern/custom", content)
	r.With(ic.Must(action.Patterns{
		{Value: `killer\..*`, PatternType: models.Regex},
		{Value: "curator.printers"},
	})).Get("/pattern/stacked", content)

	r.With(ic.Must(action.Dynamic{Name: "niceName"})).Get("/dynamic/nice-name", content)
	r.With(ic.Must(action.Dynamic{Name: "worldEnder", Meta: "apocalypse"})).Get("/dynamic/world-ender", content)

	r.With(ic.Must(action.SubjectPresent{})).Get("/subject/present", content)
	r.With(ic.Must(action.SubjectNotPresent{})).Get("/subject/not-present", content)
	r.With(ic.Must(action.SubjectPresent{HandlerKey: NoSubjectHandlerKey})).Get("/subject/present/no-subject-handler", content)

	r.With(ic.Must(action.RoleBasedPermissions{Name: "admin"})).Get("/rbp/admin", content)
	r.With(ic.Must(action.Composite{Name: CompositeCuratorOrFoo})).Get("/composite/curator-or-foo", content)
	r.With(ic.Must(action.Composite{Name: CompositeSubjectAndZombie})).Get("/composite/subject-and-zombie", content)

	r.With(ic.Must(action.Unrestricted{}, action.SubjectPresent{})).Get("/unrestricted", content)
}

func filterRoutes(app *App) (*filter.Routes, error) {
	c := app.Filters
	curator, err := c.Composite(CompositeCuratorOrFoo, "")
	if err != nil {
		return nil, err
	}
	get := func(path string, f filter.FilterFunction) filter.Route {
		return filter.Route{Method: http.MethodGet, Path: "/filter" + path, Filter: f}
	}
	routes := []filter.Route{
		get("/restrict/foo-and-bar", c.Restrict([][]string{{"foo", "bar"}}, "")),
		get("/restrict/foo-or-hurdy", c.Restrict([][]string{{"foo"}, {"hurdy"}}, "")),
		get("/pattern/equality", c.Pattern("killer.undead.zombie", models.Equality, "", false, "")),
		get("/pattern/regex", c.Pattern(`killer\.undead\..*`, models.Regex, "", false, "")),
		get("/pattern/invert/regex", c.Pattern(`killer\.undead\..*`, models.Regex, "", true, "")),
		get("/pattern/custom", c.Pattern(`"jagged.edge" in permissions`, models.Custom, "", false, "")),
		get("/dynamic/nice-name", c.Dynamic("niceName", "", "")),
		get("/subject/present", c.SubjectPresent("")),
		get("/subject/not-present", c.SubjectNotPresent("")),
		get("/rbp/admin", c.RoleBasedPermissions("admin", "")),
		get("/composite/curator-or-foo", curator),
	}
	return filter.NewRoutes(app.Handlers, app.Logic.Patterns(), routes...)
}

func viewHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r = deadbolt.Bind(r)
		t, err := viewTemplate.Clone()
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "template")
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := t.Funcs(app.View.FuncMap(r.Context())).Execute(w, nil); err != nil {
			app.Logic.Logger().ErrorContext(r.Context(), "render view", "err", err)
		}
	}
}

func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": version.Version,
	})
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(version.Get())
}
