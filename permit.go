package phlex

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// permitPool enforces a node's concurrency limit. Unlimited nodes get a
// nil pool and Acquire/Release become no-ops rather than a semaphore
// sized at some arbitrary large number.
type permitPool struct {
	sem *semaphore.Weighted
}

// newPermitPool builds the pool for c, per node.go's Concurrency.Permits:
// 0 means unlimited (no gating at all), otherwise a weighted semaphore of
// that size (1 for Serial).
func newPermitPool(c Concurrency) *permitPool {
	n := c.Permits()
	if n <= 0 {
		return &permitPool{}
	}
	return &permitPool{sem: semaphore.NewWeighted(n)}
}

// Acquire blocks until a permit is free or ctx is cancelled. This is
// the scheduler's one suspension point: a task may park here, between
// nodes, but never inside user code.
func (p *permitPool) Acquire(ctx context.Context) error {
	if p.sem == nil {
		return nil
	}
	return p.sem.Acquire(ctx, 1)
}

// Release returns the permit acquired by a matching Acquire.
func (p *permitPool) Release() {
	if p.sem == nil {
		return
	}
	p.sem.Release(1)
}
