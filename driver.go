package phlex

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Driver owns exactly one Source instance and drives it to exhaustion,
// submitting every yielded store to a Scheduler and, on exhaustion,
// closing every level the run actually opened by emitting flush stores
// in reverse depth order.
type Driver struct {
	scheduler *Scheduler
	logger    *zap.Logger

	mu   sync.Mutex
	open map[uint64]*Store // level hash -> most recently yielded store at that level
}

// NewDriver returns a Driver submitting to scheduler. A nil logger
// defaults to zap.NewNop().
func NewDriver(scheduler *Scheduler, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{scheduler: scheduler, logger: logger, open: make(map[uint64]*Store)}
}

// Yield submits store to the scheduler and records its level as open,
// so Finish knows to close it. Called by a push-shaped Source's Next,
// or internally by AsSource for a pull-shaped one.
func (d *Driver) Yield(ctx context.Context, store *Store) error {
	d.mu.Lock()
	d.open[store.Level.Hash()] = store
	d.mu.Unlock()
	return d.scheduler.Submit(store)
}

// Run calls source.Next repeatedly until it reports no more stores, ctx
// is cancelled, or it errors, then always calls Finish to close every
// level the run opened — a failed source still flushes, so folds
// finalize over whatever arrived before the failure.
func (d *Driver) Run(ctx context.Context, source Source) error {
	var runErr error
	for {
		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
		more, err := source.Next(ctx, d)
		if err != nil {
			d.logger.Error("phlex: source failed", zap.Error(err))
			runErr = err
			break
		}
		if !more {
			break
		}
	}
	if err := d.Finish(ctx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Finish emits a flush store at every level the run opened — including
// every ancestor of every yielded store, not just the leaves, since a
// fold finalized at a child level publishes its output into the parent
// level's continuation (see Scheduler.publishFoldOutput), which must
// itself be flushed in turn. Levels are closed deepest-first, each one
// fully drained (via Scheduler.Wait) before its parent is flushed, so a
// cascading fold-of-fold sees its input finalized before it is asked to
// finalize itself.
func (d *Driver) Finish(ctx context.Context) error {
	d.mu.Lock()
	leaves := make([]*Store, 0, len(d.open))
	for _, st := range d.open {
		leaves = append(leaves, st)
	}
	d.open = make(map[uint64]*Store)
	d.mu.Unlock()

	seen := make(map[uint64]*Store, len(leaves))
	for _, st := range leaves {
		for cur := st; cur != nil; cur = cur.parent {
			if _, ok := seen[cur.Level.Hash()]; !ok {
				seen[cur.Level.Hash()] = cur
			}
		}
	}
	levels := make([]*Store, 0, len(seen))
	for _, st := range seen {
		levels = append(levels, st)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i].Level.Depth() > levels[j].Level.Depth() })

	for _, st := range levels {
		if err := d.scheduler.Submit(st.MakeFlush("driver")); err != nil {
			return err
		}
		if err := d.scheduler.Wait(); err != nil {
			return err
		}
	}
	return nil
}
