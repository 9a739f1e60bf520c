package mw

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/TwigBush/deadbolt-go/internal/trace"
	"github.com/TwigBush/deadbolt-go/pkg/deadbolt"
)

// AttrTrace is the deadbolt request attribute holding the trace id.
const AttrTrace = "trace.id"

// Trace accepts a caller supplied trace id only when it is a UUID and mints
// one otherwise. The id is echoed back and stored on the bound request so
// handlers and constraints can log it.
func Trace() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(trace.Header)
			if _, err := uuid.Parse(id); err != nil {
				id = trace.NewID()
			}
			r = deadbolt.Bind(r.WithContext(trace.With(r.Context(), id)))
			deadbolt.SetAttr(r.Context(), AttrTrace, id)

			w.Header().Set(trace.Header, id)
			next.ServeHTTP(w, r)
		})
	}
}
