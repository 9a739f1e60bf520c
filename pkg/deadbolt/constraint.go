package deadbolt

import (
	"context"
	"errors"
)

// Constraint is a composable authorization check. Operands are evaluated left
// to right and combinators short-circuit. A returned error always counts as a
// deny: no combinator turns a failure into an allow.
type Constraint func(ctx context.Context, h Handler) (bool, error)

// And passes when both a and b pass. b is not evaluated when a fails.
func And(a, b Constraint) Constraint {
	return func(ctx context.Context, h Handler) (bool, error) {
		ok, err := a(ctx, h)
		if err != nil || !ok {
			return false, err
		}
		return b(ctx, h)
	}
}

// Or passes when a or b passes. b is not evaluated when a passes. A failing a
// counts as a deny of that operand, so b still gets its turn.
func Or(a, b Constraint) Constraint {
	return func(ctx context.Context, h Handler) (bool, error) {
		ok, errA := a(ctx, h)
		if errA == nil && ok {
			return true, nil
		}
		ok, errB := b(ctx, h)
		if errB == nil && ok {
			return true, nil
		}
		return false, errors.Join(errA, errB)
	}
}

// Not inverts a. A failing a stays a failure.
func Not(a Constraint) Constraint {
	return func(ctx context.Context, h Handler) (bool, error) {
		ok, err := a(ctx, h)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

func (c Constraint) And(other Constraint) Constraint { return And(c, other) }

func (c Constraint) Or(other Constraint) Constraint { return Or(c, other) }

func (c Constraint) Negate() Constraint { return Not(c) }

// AllOf folds cs with And. With no operands it passes.
func AllOf(cs ...Constraint) Constraint {
	if len(cs) == 0 {
		return Always(true)
	}
	acc := cs[0]
	for _, c := range cs[1:] {
		acc = And(acc, c)
	}
	return acc
}

// AnyOf folds cs with Or. With no operands it fails.
func AnyOf(cs ...Constraint) Constraint {
	if len(cs) == 0 {
		return Always(false)
	}
	acc := cs[0]
	for _, c := range cs[1:] {
		acc = Or(acc, c)
	}
	return acc
}

func Always(v bool) Constraint {
	return func(context.Context, Handler) (bool, error) { return v, nil }
}
