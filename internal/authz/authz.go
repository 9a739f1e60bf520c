// Package authz answers the named checks behind dynamic constraints and
// custom patterns, either from local bexpr rules or from OpenFGA.
package authz

import "context"

// Decision is the answer to one Request. Reason is set on denial.
type Decision struct {
	Allowed bool
	Reason  string
}

// Request kinds carried in Request.Context["kind"].
const (
	KindDynamic    = "dynamic"
	KindPermission = "permission"
)

type Request struct {
	Subject  string         // e.g. "user:greet"
	Relation string         // dynamic constraint name or custom permission value
	Object   string         // constraint meta, e.g. "document:readme"
	Context  map[string]any // subject attributes and request data
}

// Kind reports whether the request came from a dynamic constraint or a
// custom pattern. It is empty when the caller did not say.
func (r Request) Kind() string {
	k, _ := r.Context["kind"].(string)
	return k
}

type Authorizer interface {
	Check(ctx context.Context, req Request) (Decision, error)
}

// CheckFunc adapts a plain function to Authorizer.
type CheckFunc func(ctx context.Context, req Request) (Decision, error)

func (f CheckFunc) Check(ctx context.Context, req Request) (Decision, error) { return f(ctx, req) }
