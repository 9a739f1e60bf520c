package filter

import (
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
)

// Route applies Filter to requests whose method and path match. An empty
// Method or "*" matches any method. Path is a regular expression that must
// match the whole URL path.
type Route struct {
	Method     string
	Path       string
	Filter     FilterFunction
	HandlerKey string
}

type compiledRoute struct {
	method  string
	path    *regexp.Regexp
	filter  FilterFunction
	handler deadbolt.Handler
}

// Routes is a route table exposed as chi middleware. The first matching route
// decides; unmatched requests pass through untouched.
type Routes struct {
	routes []compiledRoute
	log    *slog.Logger
}

func NewRoutes(handlers *deadbolt.HandlerCache, patterns *deadbolt.PatternCache, routes ...Route) (*Routes, error) {
	if handlers == nil {
		return nil, deadbolt.ErrNoDefaultHandler
	}
	if patterns == nil {
		patterns = deadbolt.NewPatternCache(nil)
	}
	rt := &Routes{log: slog.Default()}
	for _, r := range routes {
		if r.Filter == nil {
			return nil, fmt.Errorf("%w: route %s %s has no filter", deadbolt.ErrInvalidAnnotation, r.Method, r.Path)
		}
		re, err := patterns.Get(r.Path)
		if err != nil {
			return nil, fmt.Errorf("route %s %s: %w", r.Method, r.Path, err)
		}
		h, err := handlers.GetKey(r.HandlerKey)
		if err != nil {
			return nil, err
		}
		method := strings.ToUpper(r.Method)
		if method == "*" {
			method = ""
		}
		rt.routes = append(rt.routes, compiledRoute{method: method, path: re, filter: r.Filter, handler: h})
	}
	return rt, nil
}

// WithLogger replaces the logger used for failed auth failure handlers.
func (rt *Routes) WithLogger(l *slog.Logger) *Routes {
	rt.log = l
	return rt
}

func (rt *Routes) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := rt.match(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		r = deadbolt.Bind(r)
		res, err := route.filter(r.Context(), r, route.handler, next)
		if err != nil {
			rt.log.ErrorContext(r.Context(), "filter failed", "method", r.Method, "path", r.URL.Path, "err", err)
			res = deadbolt.Unauthorized("")
		}
		if res == nil {
			res = deadbolt.Unauthorized("")
		}
		res.ServeHTTP(w, r)
	})
}

func (rt *Routes) match(r *http.Request) (compiledRoute, bool) {
	for _, route := range rt.routes {
		if route.method != "" && route.method != r.Method {
			continue
		}
		if route.path.MatchString(r.URL.Path) {
			return route, true
		}
	}
	return compiledRoute{}, false
}
