package deadbolt

import (
	"context"
	"net/http"
	"sync"

	"github.com/TwigBush/deadbolt-go/pkg/models"
)

// CacheUserKey is the well-known name under which a request memoizes its
// subject when subject caching is enabled.
const CacheUserKey = "deadbolt.java.cache-user"

type requestKey struct{}

// requestState is owned by one request and never shared with the caches.
type requestState struct {
	req *http.Request

	mu            sync.Mutex
	subject       models.Subject
	subjectLoaded bool
	authorised    bool
	attrs         map[string]any
}

// WithRequest attaches r and a fresh per-request state to ctx. A ctx that
// already carries state is returned unchanged.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	if st := stateFrom(ctx); st != nil {
		return ctx
	}
	return context.WithValue(ctx, requestKey{}, &requestState{req: r})
}

// Bind returns r with deadbolt request state attached to its context.
func Bind(r *http.Request) *http.Request {
	if st := stateFrom(r.Context()); st != nil {
		return r
	}
	st := &requestState{}
	r = r.WithContext(context.WithValue(r.Context(), requestKey{}, st))
	st.req = r
	return r
}

// RequestFrom returns the request bound to ctx.
func RequestFrom(ctx context.Context) (*http.Request, bool) {
	st := stateFrom(ctx)
	if st == nil || st.req == nil {
		return nil, false
	}
	return st.req, true
}

// MarkAuthorised records that the request passed a constraint.
func MarkAuthorised(ctx context.Context) {
	if st := stateFrom(ctx); st != nil {
		st.mu.Lock()
		st.authorised = true
		st.mu.Unlock()
	}
}

// IsAuthorised reports whether an earlier constraint already authorised the request.
func IsAuthorised(ctx context.Context) bool {
	st := stateFrom(ctx)
	if st == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.authorised
}

// SetAttr stores a request-scoped value, e.g. data loaded by BeforeAuthCheck.
func SetAttr(ctx context.Context, key string, v any) {
	st := stateFrom(ctx)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.attrs == nil {
		st.attrs = make(map[string]any)
	}
	st.attrs[key] = v
}

func Attr(ctx context.Context, key string) (any, bool) {
	st := stateFrom(ctx)
	if st == nil {
		return nil, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if key == CacheUserKey && st.subjectLoaded {
		return st.subject, true
	}
	v, ok := st.attrs[key]
	return v, ok
}

func stateFrom(ctx context.Context) *requestState {
	st, _ := ctx.Value(requestKey{}).(*requestState)
	return st
}

func (st *requestState) cachedSubject() (models.Subject, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.subject, st.subjectLoaded
}

func (st *requestState) storeSubject(s models.Subject) {
	st.mu.Lock()
	st.subject = s
	st.subjectLoaded = true
	st.mu.Unlock()
}
