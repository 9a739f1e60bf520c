package deadbolt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TwigBush/deadbolt-go/pkg/models"
)

func adminOrAuditorRoot() models.RoleGroups {
	return models.ParseRoleGroups([][]string{{"admin"}, {"auditor", "root"}})
}

func TestRestrict_GroupsAreOredRolesAreAnded(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		roles []string
		want  bool
	}{
		{"auditor and root", []string{"auditor", "root"}, true},
		{"auditor only", []string{"auditor"}, false},
		{"admin", []string{"admin"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &fakeHandler{subject: mustSubject("u", tt.roles, nil)}
			got, err := Restrict(context.Background(), NewLogic(), h, "", adminOrAuditorRoot, BoolOutcome())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRestrict_NoSubjectDeniesWithoutCallingSupplier(t *testing.T) {
	t.Parallel()

	var supplied atomic.Int32
	h := &fakeHandler{}
	got, err := Restrict(context.Background(), NewLogic(), h, "", func() models.RoleGroups {
		supplied.Add(1)
		return adminOrAuditorRoot()
	}, BoolOutcome())
	require.NoError(t, err)
	assert.False(t, got)
	assert.Zero(t, supplied.Load())
}

func TestRestrict_SupplierInvokedOnce(t *testing.T) {
	t.Parallel()

	var supplied atomic.Int32
	h := &fakeHandler{subject: mustSubject("u", []string{"admin"}, nil)}
	_, err := Restrict(context.Background(), NewLogic(), h, "", func() models.RoleGroups {
		supplied.Add(1)
		return adminOrAuditorRoot()
	}, BoolOutcome())
	require.NoError(t, err)
	assert.Equal(t, int32(1), supplied.Load())
}

func TestRestrict_EmptyGroupsDeny(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{subject: mustSubject("u", []string{"admin"}, nil)}
	got, err := Restrict(context.Background(), NewLogic(), h, "", func() models.RoleGroups { return nil }, BoolOutcome())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestPattern_Regex(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{subject: mustSubject("u", nil, []string{"killer.undead.zombie"})}
	l := NewLogic()

	allowed, err := Pattern(context.Background(), l, h, "", "killer.undead.*", models.Regex, "", false, BoolOutcome())
	require.NoError(t, err)
	assert.True(t, allowed)

	inverted, err := Pattern(context.Background(), l, h, "", "killer.undead.*", models.Regex, "", true, BoolOutcome())
	require.NoError(t, err)
	assert.False(t, inverted)
}

func TestPattern_RegexMatchesWholeValue(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{subject: mustSubject("u", nil, []string{"xkiller.undead.zombie"})}
	got, err := Pattern(context.Background(), NewLogic(), h, "", "killer.undead.*", models.Regex, "", false, BoolOutcome())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestPattern_NoSubjectDeniesRegardlessOfInvert(t *testing.T) {
	t.Parallel()

	for _, pt := range []models.PatternType{models.Equality, models.Regex} {
		for _, invert := range []bool{false, true} {
			h := &fakeHandler{}
			got, err := Pattern(context.Background(), NewLogic(), h, "", "printers.edit", pt, "", invert, BoolOutcome())
			require.NoError(t, err)
			assert.False(t, got, "type=%v invert=%v", pt, invert)
		}
	}
}

func TestPattern_InvertIsComplement(t *testing.T) {
	t.Parallel()

	subjects := []models.Subject{
		mustSubject("a", nil, []string{"printers.edit"}),
		mustSubject("b", nil, []string{"printers.view"}),
		mustSubject("c", nil, nil),
	}
	values := []struct {
		value string
		pt    models.PatternType
	}{
		{"printers.edit", models.Equality},
		{"printers\\..*", models.Regex},
		{"printers.view", models.Regex},
	}
	l := NewLogic()
	for _, s := range subjects {
		for _, v := range values {
			h := &fakeHandler{subject: s}
			plain, err := Pattern(context.Background(), l, h, "", v.value, v.pt, "", false, BoolOutcome())
			require.NoError(t, err)
			inv, err := Pattern(context.Background(), l, h, "", v.value, v.pt, "", true, BoolOutcome())
			require.NoError(t, err)
			assert.NotEqual(t, plain, inv, "subject=%s value=%s", s.Identifier(), v.value)
		}
	}
}

func TestPattern_Equality(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{subject: mustSubject("u", nil, []string{"printers.edit"})}
	got, err := Pattern(context.Background(), NewLogic(), h, "", "printers.edit", models.Equality, "", false, BoolOutcome())
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Pattern(context.Background(), NewLogic(), h, "", "printers.edit", models.Equality, "", true, BoolOutcome())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestPattern_Custom(t *testing.T) {
	t.Parallel()

	l := NewLogic()
	ctx := context.Background()

	noDRH := &fakeHandler{}
	got, err := Pattern(ctx, l, noDRH, "", "anything", models.Custom, "", false, BoolOutcome())
	require.NoError(t, err)
	assert.False(t, got, "missing dynamic handler denies")

	// CUSTOM does not need a subject.
	yes := &fakeHandler{drh: fakeDRH{permission: true}}
	got, err = Pattern(ctx, l, yes, "", "anything", models.Custom, "", false, BoolOutcome())
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Pattern(ctx, l, yes, "", "anything", models.Custom, "", true, BoolOutcome())
	require.NoError(t, err)
	assert.False(t, got)

	failing := &fakeHandler{drh: fakeDRH{err: errBoom}}
	for _, invert := range []bool{false, true} {
		got, err = Pattern(ctx, l, failing, "", "anything", models.Custom, "", invert, BoolOutcome())
		require.NoError(t, err)
		assert.False(t, got, "failure denies even when inverted")
	}
}

func TestPattern_MalformedRegexDenies(t *testing.T) {
	t.Parallel()

	l := NewLogic()
	h := &fakeHandler{subject: mustSubject("u", nil, []string{"a"})}
	for i := 0; i < 3; i++ {
		got, err := Pattern(context.Background(), l, h, "", "(unclosed", models.Regex, "", true, BoolOutcome())
		require.NoError(t, err)
		assert.False(t, got)
	}
	assert.Equal(t, 1, l.Patterns().Len())
}

func TestPattern_SourceCannotEscapeAnchors(t *testing.T) {
	t.Parallel()

	l := NewLogic()
	h := &fakeHandler{subject: mustSubject("u", nil, []string{"admin.everything"})}
	for _, invert := range []bool{false, true} {
		got, err := Pattern(context.Background(), l, h, "", "a)|(b", models.Regex, "", invert, BoolOutcome())
		require.NoError(t, err)
		assert.False(t, got, "invert=%v", invert)
	}

	_, err := l.Patterns().Get("a)|(b")
	assert.ErrorIs(t, err, ErrInvalidPattern)
}

func TestDynamic(t *testing.T) {
	t.Parallel()

	l := NewLogic()
	ctx := context.Background()
	tests := []struct {
		name string
		drh  DynamicResourceHandler
		want bool
	}{
		{"allowed", fakeDRH{allowed: true}, true},
		{"refused", fakeDRH{allowed: false}, false},
		{"failure", fakeDRH{allowed: true, err: errBoom}, false},
		{"no handler", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &fakeHandler{drh: tt.drh}
			got, err := Dynamic(ctx, l, h, "", "niche", "", BoolOutcome())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRoleBasedPermissions(t *testing.T) {
	t.Parallel()

	l := NewLogic()
	ctx := context.Background()
	perms := map[string][]string{
		"foo":   {"bar.*", "baz"},
		"empty": {},
		"bad":   {"(oops"},
	}

	tests := []struct {
		name    string
		subject models.Subject
		role    string
		want    bool
	}{
		{"matching permission", mustSubject("u", nil, []string{"bar.zee"}), "foo", true},
		{"exact permission", mustSubject("u", nil, []string{"baz"}), "foo", true},
		{"no match", mustSubject("u", nil, []string{"qux"}), "foo", false},
		{"empty role permissions deny", mustSubject("u", nil, []string{"bar.zee"}), "empty", false},
		{"unknown role denies", mustSubject("u", nil, []string{"bar.zee"}), "nope", false},
		{"malformed pattern denies", mustSubject("u", nil, []string{"oops"}), "bad", false},
		{"no subject", nil, "foo", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &fakeHandler{subject: tt.subject, rolePerms: perms}
			got, err := RoleBasedPermissions(ctx, l, h, "", tt.role, BoolOutcome())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubjectPresentAndNotPresent(t *testing.T) {
	t.Parallel()

	l := NewLogic()
	ctx := context.Background()
	present := &fakeHandler{subject: mustSubject("u", nil, nil)}
	absent := &fakeHandler{}
	failing := &fakeHandler{subjectErr: errBoom}

	check := func(h Handler, notPresent bool) bool {
		var got bool
		var err error
		if notPresent {
			got, err = SubjectNotPresent(ctx, l, h, "", BoolOutcome())
		} else {
			got, err = SubjectPresent(ctx, l, h, "", BoolOutcome())
		}
		require.NoError(t, err)
		return got
	}

	assert.True(t, check(present, false))
	assert.False(t, check(absent, false))
	assert.False(t, check(present, true))
	assert.True(t, check(absent, true))
	assert.False(t, check(failing, false))
	assert.False(t, check(failing, true), "lookup failure never reads as not present")
}

func TestEvaluate_BeforeAuthCheckWins(t *testing.T) {
	t.Parallel()

	preAuth := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := &fakeHandler{preAuth: preAuth, subject: mustSubject("u", []string{"admin"}, nil)}
	var ran atomic.Int32
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	result, err := Evaluate(context.Background(), NewLogic(), h, "", countingConstraint(true, nil, &ran), HTTPOutcome(next))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	result.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Zero(t, ran.Load(), "predicate must not run")
	assert.Zero(t, h.subjectCalls.Load())
	assert.Zero(t, h.failures.Load())
}

func TestEvaluate_BeforeAuthCheckFailureDenies(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{preAuthErr: errBoom}
	got, err := Evaluate(context.Background(), NewLogic(), h, "", Always(true), BoolOutcome())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_PanicDenies(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{}
	boom := Constraint(func(context.Context, Handler) (bool, error) { panic("kaboom") })
	got, err := Evaluate(context.Background(), NewLogic(), h, "", boom, BoolOutcome().Inverted())
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluate_DenyRendersOnAuthFailure(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	result, err := SubjectPresent(context.Background(), NewLogic(), h, "login required", HTTPOutcome(next))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	result.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "login required")
	assert.Equal(t, int32(1), h.failures.Load())
}

func TestSubjectCaching(t *testing.T) {
	t.Parallel()

	h := &fakeHandler{subject: mustSubject("u", []string{"admin"}, []string{"p"})}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := WithRequest(context.Background(), req)

	cached := NewLogic(WithSubjectCaching(true))
	c := AllOf(cached.SubjectPresent(), cached.Pattern("p", models.Equality, "", false))
	got, err := Evaluate(ctx, cached, h, "", c, BoolOutcome())
	require.NoError(t, err)
	assert.True(t, got)
	assert.Equal(t, int32(1), h.subjectCalls.Load())

	v, ok := Attr(ctx, CacheUserKey)
	require.True(t, ok)
	assert.Equal(t, "u", v.(models.Subject).Identifier())

	uncached := NewLogic()
	h2 := &fakeHandler{subject: h.subject}
	c2 := AllOf(uncached.SubjectPresent(), uncached.Pattern("p", models.Equality, "", false))
	_, err = Evaluate(WithRequest(context.Background(), req), uncached, h2, "", c2, BoolOutcome())
	require.NoError(t, err)
	assert.Equal(t, int32(2), h2.subjectCalls.Load())
}

func TestRequestState(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	bound := Bind(req)
	got, ok := RequestFrom(bound.Context())
	require.True(t, ok)
	assert.Same(t, bound, got)
	assert.Equal(t, "/x", got.URL.Path)
	assert.Same(t, bound, Bind(bound))

	assert.False(t, IsAuthorised(bound.Context()))
	MarkAuthorised(bound.Context())
	assert.True(t, IsAuthorised(bound.Context()))

	SetAttr(bound.Context(), "k", 42)
	v, ok := Attr(bound.Context(), "k")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = RequestFrom(context.Background())
	assert.False(t, ok)
}
