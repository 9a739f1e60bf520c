package deadbolt

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// fakeHandler is a configurable Handler for tests.
type fakeHandler struct {
	BaseHandler

	subject    models.Subject
	subjectErr error
	preAuth    http.Handler
	preAuthErr error
	drh        DynamicResourceHandler
	rolePerms  map[string][]string

	subjectCalls atomic.Int32
	failures     atomic.Int32
}

func (f *fakeHandler) BeforeAuthCheck(context.Context) (http.Handler, error) {
	return f.preAuth, f.preAuthErr
}

func (f *fakeHandler) GetSubject(context.Context) (models.Subject, error) {
	f.subjectCalls.Add(1)
	if f.subjectErr != nil {
		return nil, f.subjectErr
	}
	return f.subject, nil
}

func (f *fakeHandler) OnAuthFailure(ctx context.Context, content string) (http.Handler, error) {
	f.failures.Add(1)
	return f.BaseHandler.OnAuthFailure(ctx, content)
}

func (f *fakeHandler) GetDynamicResourceHandler(context.Context) (DynamicResourceHandler, error) {
	return f.drh, nil
}

func (f *fakeHandler) GetPermissionsForRole(_ context.Context, role string) ([]string, error) {
	return f.rolePerms[role], nil
}

type fakeDRH struct {
	allowed    bool
	permission bool
	err        error
}

func (d fakeDRH) IsAllowed(context.Context, string, string, Handler) (bool, error) {
	return d.allowed, d.err
}

func (d fakeDRH) CheckPermission(context.Context, string, string, Handler) (bool, error) {
	return d.permission, d.err
}

func mustSubject(id string, roles, perms []string) models.Subject {
	s, err := models.NewSubject(id, roles, perms)
	if err != nil {
		panic(err)
	}
	return s
}

// countingConstraint records how often it ran.
func countingConstraint(result bool, err error, calls *atomic.Int32) Constraint {
	return func(context.Context, Handler) (bool, error) {
		calls.Add(1)
		return result, err
	}
}

var errBoom = errors.New("boom")
