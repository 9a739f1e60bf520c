package filter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt/filter"
	"github.com/TwigBush/deadbolt-go/pkg/models"
)

type stubHandler struct {
	deadbolt.BaseHandler
	subject models.Subject
	perms   map[string][]string
	drh     deadbolt.DynamicResourceHandler
}

func (s stubHandler) GetSubject(context.Context) (models.Subject, error) { return s.subject, nil }

func (s stubHandler) GetPermissionsForRole(_ context.Context, role string) ([]string, error) {
	return s.perms[role], nil
}

func (s stubHandler) GetDynamicResourceHandler(context.Context) (deadbolt.DynamicResourceHandler, error) {
	return s.drh, nil
}

type allowNamed string

func (a allowNamed) IsAllowed(_ context.Context, name, _ string, _ deadbolt.Handler) (bool, error) {
	return name == string(a), nil
}

func (allowNamed) CheckPermission(context.Context, string, string, deadbolt.Handler) (bool, error) {
	return false, nil
}

var next = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("next"))
})

func lotte(t *testing.T) models.Subject {
	t.Helper()
	s, err := models.NewSubject("lotte", []string{"foo", "bar"}, []string{"killer.undead.zombie", "curator.printers"})
	require.NoError(t, err)
	return s
}

func run(t *testing.T, f filter.FilterFunction, h deadbolt.Handler) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res, err := f(req.Context(), req, h, next)
	require.NoError(t, err)
	require.NotNil(t, res)
	rr := httptest.NewRecorder()
	res.ServeHTTP(rr, req)
	return rr
}

func TestConstraints(t *testing.T) {
	t.Parallel()

	c := filter.NewConstraints(nil, nil)
	withSubject := stubHandler{
		subject: lotte(t),
		perms:   map[string][]string{"curator": {"curator\\..*"}, "empty": nil},
		drh:     allowNamed("niceName"),
	}
	noSubject := stubHandler{}

	tests := []struct {
		name     string
		f        filter.FilterFunction
		h        deadbolt.Handler
		wantCode int
	}{
		{"subject present", c.SubjectPresent(""), withSubject, http.StatusOK},
		{"subject present without subject", c.SubjectPresent(""), noSubject, http.StatusUnauthorized},
		{"subject not present", c.SubjectNotPresent(""), noSubject, http.StatusOK},
		{"subject not present with subject", c.SubjectNotPresent(""), withSubject, http.StatusUnauthorized},
		{"restrict", c.Restrict([][]string{{"foo", "bar"}}, ""), withSubject, http.StatusOK},
		{"restrict negated", c.Restrict([][]string{{"foo", "!bar"}}, ""), withSubject, http.StatusUnauthorized},
		{"pattern regex", c.Pattern("killer.undead.*", models.Regex, "", false, ""), withSubject, http.StatusOK},
		{"pattern regex inverted", c.Pattern("killer.undead.*", models.Regex, "", true, ""), withSubject, http.StatusUnauthorized},
		{"pattern equality", c.Pattern("curator.printers", models.Equality, "", false, ""), withSubject, http.StatusOK},
		{"pattern custom", c.Pattern("anything", models.Custom, "", false, ""), withSubject, http.StatusUnauthorized},
		{"dynamic", c.Dynamic("niceName", "", ""), withSubject, http.StatusOK},
		{"dynamic other name", c.Dynamic("badName", "", ""), withSubject, http.StatusUnauthorized},
		{"dynamic without drh", c.Dynamic("niceName", "", ""), noSubject, http.StatusUnauthorized},
		{"role based permissions", c.RoleBasedPermissions("curator", ""), withSubject, http.StatusOK},
		{"role based permissions empty", c.RoleBasedPermissions("empty", ""), withSubject, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rr := run(t, tt.f, tt.h)
			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "next", rr.Body.String())
			}
		})
	}
}

func TestConstraints_DenyCarriesContent(t *testing.T) {
	t.Parallel()

	c := filter.NewConstraints(nil, nil)
	rr := run(t, c.SubjectPresent("log in first"), stubHandler{})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "log in first")
}

func TestConstraints_Composite(t *testing.T) {
	t.Parallel()

	logic := deadbolt.NewLogic()
	composites := deadbolt.NewCompositeCache()
	require.NoError(t, composites.Register("curatorOrSubject",
		logic.Pattern("curator.*", models.Regex, "", false).Or(logic.SubjectPresent())))
	c := filter.NewConstraints(logic, composites)

	f, err := c.Composite("curatorOrSubject", "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, run(t, f, stubHandler{subject: lotte(t)}).Code)
	assert.Equal(t, http.StatusUnauthorized, run(t, f, stubHandler{}).Code)

	_, err = c.Composite("missing", "")
	assert.ErrorIs(t, err, deadbolt.ErrUnknownComposite)
	assert.Panics(t, func() { c.MustComposite("missing", "") })

	byValue := c.CompositeOf(deadbolt.Not(logic.SubjectPresent()), "")
	assert.Equal(t, http.StatusOK, run(t, byValue, stubHandler{}).Code)
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	hc, err := deadbolt.NewHandlerCache(stubHandler{}, map[string]deadbolt.Handler{
		"lotte": stubHandler{subject: lotte(t)},
	})
	require.NoError(t, err)
	c := filter.NewConstraints(nil, nil)

	routes, err := filter.NewRoutes(hc, nil,
		filter.Route{Method: http.MethodGet, Path: "/admin/.*", Filter: c.SubjectPresent("")},
		filter.Route{Method: "*", Path: "/lotte/.*", Filter: c.Restrict([][]string{{"foo"}}, ""), HandlerKey: "lotte"},
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(routes.Middleware)
	r.HandleFunc("/*", next)

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/admin/users", http.StatusUnauthorized},
		{http.MethodPost, "/admin/users", http.StatusOK},
		{http.MethodGet, "/public", http.StatusOK},
		{http.MethodDelete, "/lotte/things", http.StatusOK},
		{http.MethodGet, "/x/admin/users", http.StatusOK},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, rr.Code, "%s %s", tt.method, tt.path)
	}
}

func TestNewRoutes_Errors(t *testing.T) {
	t.Parallel()

	hc, err := deadbolt.NewHandlerCache(stubHandler{}, nil)
	require.NoError(t, err)
	c := filter.NewConstraints(nil, nil)

	_, err = filter.NewRoutes(hc, nil, filter.Route{Path: "[bad", Filter: c.SubjectPresent("")})
	assert.ErrorIs(t, err, deadbolt.ErrInvalidPattern)
	_, err = filter.NewRoutes(hc, nil, filter.Route{Path: "/a)|(/b", Filter: c.SubjectPresent("")})
	assert.ErrorIs(t, err, deadbolt.ErrInvalidPattern)
	_, err = filter.NewRoutes(hc, nil, filter.Route{Path: "/x", Filter: c.SubjectPresent(""), HandlerKey: "nope"})
	assert.ErrorIs(t, err, deadbolt.ErrUnknownHandler)
	_, err = filter.NewRoutes(hc, nil, filter.Route{Path: "/x"})
	assert.ErrorIs(t, err, deadbolt.ErrInvalidAnnotation)
}
