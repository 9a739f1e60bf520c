package server

import (
	"context"

	"github.com/TwigBush/deadbolt-go/internal/httpx"
	"github.com/TwigBush/deadbolt-go/internal/rbac"
	"github.com/TwigBush/deadbolt-go/internal/subjects"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// UserCookie names the cookie that identifies the demo user.
const UserCookie = "user"

// NoSubjectHandlerKey selects a handler that never finds a subject.
const NoSubjectHandlerKey = "noSubject"

// Handler identifies the subject by bearer token, when tokens are enabled,
// or by the user cookie.
type Handler struct {
	deadbolt.BaseHandler

	store    *subjects.Store
	tokens   *subjects.TokenSource
	drh      deadbolt.DynamicResourceHandler
	policies *rbac.Policies
}

var _ deadbolt.Handler = (*Handler)(nil)

func NewHandler(store *subjects.Store, tokens *subjects.TokenSource, drh deadbolt.DynamicResourceHandler, policies *rbac.Policies) *Handler {
	return &Handler{store: store, tokens: tokens, drh: drh, policies: policies}
}

func (h *Handler) GetSubject(ctx context.Context) (models.Subject, error) {
	r, ok := deadbolt.RequestFrom(ctx)
	if !ok {
		return nil, nil
	}
	if raw, ok := httpx.ExtractBearerToken(r.Header.Get("Authorization")); ok && h.tokens != nil {
		return h.tokens.Subject(raw)
	}
	c, err := r.Cookie(UserCookie)
	if err != nil {
		return nil, nil
	}
	s, ok := h.store.Lookup(c.Value)
	if !ok {
		return nil, nil
	}
	return s, nil
}

func (h *Handler) GetDynamicResourceHandler(context.Context) (deadbolt.DynamicResourceHandler, error) {
	return h.drh, nil
}

func (h *Handler) GetPermissionsForRole(_ context.Context, role string) ([]string, error) {
	if h.policies == nil {
		return nil, nil
	}
	return h.policies.PermissionsForRole(role)
}

// noSubjectHandler shares everything with Handler except the subject.
type noSubjectHandler struct {
	*Handler
}

func (noSubjectHandler) GetSubject(context.Context) (models.Subject, error) { return nil, nil }
