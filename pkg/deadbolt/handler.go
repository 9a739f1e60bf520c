package deadbolt

import (
	"context"
	"net/http"

	"github.com/TwigBush/deadbolt-go/internal/httpx"
	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// Handler is the application adapter consulted by every constraint.
//
// Absent values are nil: a nil result from BeforeAuthCheck lets the check
// proceed, a nil Subject means nobody is logged in and a nil
// DynamicResourceHandler means dynamic and custom pattern checks deny.
// The current request is available through RequestFrom(ctx).
type Handler interface {
	// BeforeAuthCheck may short-circuit the check with its own result.
	BeforeAuthCheck(ctx context.Context) (http.Handler, error)
	GetSubject(ctx context.Context) (models.Subject, error)
	// OnAuthFailure renders the deny result. content is an optional hint, "" when unset.
	OnAuthFailure(ctx context.Context, content string) (http.Handler, error)
	GetDynamicResourceHandler(ctx context.Context) (DynamicResourceHandler, error)
	// GetPermissionsForRole lists the permission patterns associated with a role.
	GetPermissionsForRole(ctx context.Context, roleName string) ([]string, error)
}

// DynamicResourceHandler holds application-defined checks for dynamic
// constraints and CUSTOM patterns. meta is "" when unset.
type DynamicResourceHandler interface {
	IsAllowed(ctx context.Context, name, meta string, h Handler) (bool, error)
	CheckPermission(ctx context.Context, value, meta string, h Handler) (bool, error)
}

// BaseHandler implements Handler with the defaults: no pre-auth result, no
// subject, a 401 deny, no dynamic handler and no role permissions. Embed it and
// override what the application provides.
type BaseHandler struct{}

var _ Handler = BaseHandler{}

func (BaseHandler) BeforeAuthCheck(context.Context) (http.Handler, error) { return nil, nil }

func (BaseHandler) GetSubject(context.Context) (models.Subject, error) { return nil, nil }

func (BaseHandler) OnAuthFailure(_ context.Context, content string) (http.Handler, error) {
	return Unauthorized(content), nil
}

func (BaseHandler) GetDynamicResourceHandler(context.Context) (DynamicResourceHandler, error) {
	return nil, nil
}

func (BaseHandler) GetPermissionsForRole(context.Context, string) ([]string, error) {
	return nil, nil
}

// Unauthorized is the default deny result: HTTP 401 with a JSON error body
// that echoes content when it is set.
func Unauthorized(content string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteDenied(w, http.StatusUnauthorized, content)
	})
}
