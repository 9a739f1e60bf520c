package deadbolt

import (
	"context"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
)

// Executor runs evaluation work off the caller's goroutine. It is only needed
// where a blocking bridge with a deadline is required: the view adapter and
// the action adapter in blocking mode.
type Executor interface {
	Go(func())
}

// GoExecutor starts one goroutine per task.
type GoExecutor struct{}

func (GoExecutor) Go(f func()) { go f() }

// PoolExecutor bounds the number of concurrent evaluations. Go blocks while
// every worker is busy; Await submits to it without blocking its caller.
// Tasks submitted after Wait run on the submitting goroutine.
type PoolExecutor struct {
	p *pool.Pool

	mu     sync.RWMutex
	closed bool
}

func NewPoolExecutor(maxGoroutines int) *PoolExecutor {
	p := pool.New()
	if maxGoroutines > 0 {
		p = p.WithMaxGoroutines(maxGoroutines)
	}
	return &PoolExecutor{p: p}
}

func (e *PoolExecutor) Go(f func()) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		f()
		return
	}
	e.p.Go(f)
}

// Wait blocks until all submitted tasks finish. The pool accepts no new
// workers afterwards.
func (e *PoolExecutor) Wait() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	e.p.Wait()
}

// Await runs fn on ex and waits for its result or for ctx to end, whichever
// comes first. fn receives ctx so it can stop early; a late result is dropped.
// Submission happens off the caller's goroutine, so an executor that blocks
// while saturated cannot hold the caller past ctx. A task that only starts
// after ctx ended is skipped.
func Await[T any](ctx context.Context, ex Executor, fn func(context.Context) (T, error)) (T, error) {
	if ex == nil {
		ex = GoExecutor{}
	}
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	task := func() {
		var r result
		if r.err = ctx.Err(); r.err != nil {
			ch <- r
			return
		}
		var pc panics.Catcher
		pc.Try(func() { r.v, r.err = fn(ctx) })
		if rec := pc.Recovered(); rec != nil {
			r.err = fmt.Errorf("%w: %v", ErrConstraintPanic, rec.Value)
		}
		ch <- r
	}
	if _, direct := ex.(GoExecutor); direct {
		ex.Go(task)
	} else {
		go ex.Go(task)
	}
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
