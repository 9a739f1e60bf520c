package authz

import (
	"context"
	"fmt"

	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
)

// DynamicHandler answers dynamic constraints and custom patterns by asking an
// Authorizer about the current subject. No subject means deny.
type DynamicHandler struct {
	authz Authorizer
}

var _ deadbolt.DynamicResourceHandler = (*DynamicHandler)(nil)

func NewDynamicHandler(a Authorizer) *DynamicHandler {
	return &DynamicHandler{authz: a}
}

func (d *DynamicHandler) IsAllowed(ctx context.Context, name, meta string, h deadbolt.Handler) (bool, error) {
	return d.check(ctx, KindDynamic, name, meta, h)
}

func (d *DynamicHandler) CheckPermission(ctx context.Context, value, meta string, h deadbolt.Handler) (bool, error) {
	return d.check(ctx, KindPermission, value, meta, h)
}

func (d *DynamicHandler) check(ctx context.Context, kind, relation, meta string, h deadbolt.Handler) (bool, error) {
	s, err := h.GetSubject(ctx)
	if err != nil {
		return false, fmt.Errorf("get subject: %w", err)
	}
	if s == nil {
		return false, nil
	}
	data := map[string]any{
		"kind":        kind,
		"identifier":  s.Identifier(),
		"roles":       s.RoleNames(),
		"permissions": s.PermissionValues(),
		"meta":        meta,
		"method":      "",
		"path":        "",
	}
	if r, ok := deadbolt.RequestFrom(ctx); ok {
		data["method"] = r.Method
		data["path"] = r.URL.Path
	}
	dec, err := d.authz.Check(ctx, Request{
		Subject:  "user:" + s.Identifier(),
		Relation: relation,
		Object:   meta,
		Context:  data,
	})
	if err != nil {
		return false, err
	}
	return dec.Allowed, nil
}
