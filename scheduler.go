package phlex

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler drives a frozen catalog's nodes against arriving stores: one
// dispatch pass per process store, honoring layer order, predicate
// gating, per-node concurrency permits, partition-keyed fold
// serialization, and the hierarchy's open/flush protocol. It owns the
// dependency graph, a pool of extensions, and the goroutine fan-out
// used to run per-id dataflow dispatch over the append-only store tree.
type Scheduler struct {
	catalog    *Catalog
	logger     *zap.Logger
	extensions []Extension
	history    *History
	partitions *partitionManager

	permits map[string]*permitPool

	observedMu sync.Mutex
	observed   map[string]map[string]bool // node full name -> partition keys combined at least once

	bp *backpressure

	group *errgroup.Group
	ctx   context.Context
}

// SchedulerOption configures a Scheduler at construction.
type SchedulerOption func(*Scheduler)

// WithLogger overrides the scheduler's zap.Logger; the default is
// zap.NewNop().
func WithLogger(l *zap.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithSchedulerExtension registers ext's hooks around every dispatch.
func WithSchedulerExtension(ext Extension) SchedulerOption {
	return func(s *Scheduler) { s.extensions = append(s.extensions, ext) }
}

// WithHistoryLimit overrides the number of dispatch records the
// scheduler retains (default 1024).
func WithHistoryLimit(n int) SchedulerOption {
	return func(s *Scheduler) { s.history = NewHistory(n) }
}

// WithBackpressure sets the high/low watermark pair gating Submit.
// Both default to 0 (disabled) if this option is never supplied.
func WithBackpressure(high, low int) SchedulerOption {
	return func(s *Scheduler) { s.bp = newBackpressure(high, low) }
}

// NewScheduler builds a Scheduler over a frozen catalog. ctx bounds the
// lifetime of every dispatch; cancelling it stops new permit/backpressure
// acquisitions from succeeding. Returns an error if catalog has not had
// Freeze called on it yet.
func NewScheduler(ctx context.Context, catalog *Catalog, opts ...SchedulerOption) (*Scheduler, error) {
	if _, err := catalog.Layers(); err != nil {
		return nil, fmt.Errorf("phlex: scheduler requires a frozen catalog: %w", err)
	}

	// A plain Group, not errgroup.WithContext: that context is cancelled
	// by the first Wait, which would fail every permit acquisition for
	// stores submitted after it (Driver.Finish submits and waits per level).
	group := new(errgroup.Group)
	s := &Scheduler{
		catalog:    catalog,
		logger:     zap.NewNop(),
		history:    NewHistory(1024),
		partitions: newPartitionManager(),
		permits:    make(map[string]*permitPool),
		observed:   make(map[string]map[string]bool),
		group:      group,
		ctx:        ctx,
	}
	for _, n := range catalog.Nodes() {
		s.permits[n.FullName.String()] = newPermitPool(n.Concurrency)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bp == nil {
		s.bp = newBackpressure(0, 0)
	}
	return s, nil
}

// Submit hands store to the scheduler's worker group: a flush-stage
// store triggers fold finalization (dispatchFlush), anything else runs
// a full dispatch pass (dispatchProcess). It blocks under back-pressure
// until a slot is free, then returns once the work has been handed off
// — not once dispatch has completed. Call Wait to block for overall
// completion.
func (s *Scheduler) Submit(store *Store) error {
	if err := s.bp.acquire(s.ctx); err != nil {
		return err
	}
	s.enqueue(store, true)
	return nil
}

// submitInternal enqueues a store the scheduler itself generated —
// unfold children and their trailing flush. These bypass back-pressure:
// the watermark exists to throttle the source driver's production
// rate, and gating recursive submissions would let a saturated
// unfold deadlock against its own children, each side waiting on the
// other's slot.
func (s *Scheduler) submitInternal(store *Store) {
	s.enqueue(store, false)
}

func (s *Scheduler) enqueue(store *Store, gated bool) {
	s.group.Go(func() error {
		if gated {
			defer s.bp.release()
		}
		if store.Stage == StageFlush {
			s.dispatchFlush(store)
		} else {
			s.dispatchProcess(store)
		}
		return nil
	})
}

// Wait blocks until every store submitted so far — including the ones
// the scheduler itself recursively submits, for unfold children and
// fold flush stores — has finished dispatching.
func (s *Scheduler) Wait() error {
	return s.group.Wait()
}

// History returns the scheduler's bounded dispatch history.
func (s *Scheduler) History() *History { return s.history }

// dispatchProcess runs every non-fold catalog node in layer order
// against raw, then every fold node once, publishing into a single
// shared continuation so later layers can see earlier layers' outputs.
//
// MakeContinuation yields a sibling sharing raw's id and parent, not a
// descendant of raw, so a plain ancestor walk from the continuation
// alone cannot see raw's own seed products. Resolution here therefore
// threads both raw (the originally delivered store) and cur (the
// shared continuation) by hand: check cur.PeekOwn first, then fall back
// to raw.MostDerived. See PeekOwn's doc comment and DESIGN.md.
func (s *Scheduler) dispatchProcess(raw *Store) {
	cur := raw.MakeContinuation("scheduler")
	layers, err := s.catalog.Layers()
	if err != nil {
		s.logger.Error("phlex: catalog not frozen", zap.Error(err))
		return
	}

	for _, layer := range layers {
		var wg sync.WaitGroup
		for _, name := range layer {
			node, ok := s.catalog.LookupFullName(name)
			if !ok || node.Kind == KindFold {
				continue // folds observe every store at their level but only publish at flush
			}
			if s.predicateBlocked(node, cur, raw) {
				continue
			}
			wg.Add(1)
			go func(n *Node) {
				defer wg.Done()
				if n.Kind == KindUnfold {
					s.dispatchUnfold(n, cur, raw)
				} else {
					s.dispatchNode(n, cur, raw)
				}
			}(node)
		}
		wg.Wait()
	}

	for _, n := range s.catalog.NodesByKind(KindFold) {
		if s.predicateBlocked(n, cur, raw) {
			continue
		}
		s.dispatchFold(n, cur, raw)
	}

	cur.Seal()
}

// dispatchNode runs a transform, predicate, observer, or output node's
// plain stateless invoke path and publishes whatever outputs it
// declares into cur.
func (s *Scheduler) dispatchNode(n *Node, cur, raw *Store) {
	ins, ok := s.resolveInputs(n, cur, raw)
	if !ok {
		return
	}
	pool := s.permits[n.FullName.String()]
	if err := pool.Acquire(s.ctx); err != nil {
		return
	}
	defer pool.Release()

	op := &Operation{Kind: OpDispatch, Node: n, Store: cur}
	failed := false
	if err := s.runExtensions(op, func() error {
		outs, err := n.Algorithm.invoke(ins)
		if err != nil {
			return err
		}
		return s.publishOutputs(n, cur, outs)
	}); err != nil {
		failed = true
		s.notifyError(err, op)
	}
	s.history.Record(DispatchRecord{Node: n.FullName.String(), Level: cur.Level, Stage: cur.Stage, Failed: failed})
}

// dispatchFold serializes one combine invocation for n's partition key
// against the ancestor store at its configured partition level, keeping
// same-key combines in arrival order. It never publishes
// to cur — a fold's outputs appear only once its partition's flush
// store arrives, via dispatchFlush.
func (s *Scheduler) dispatchFold(n *Node, cur, raw *Store) {
	ins, ok := s.resolveInputs(n, cur, raw)
	if !ok {
		return
	}
	algo, ok := n.Algorithm.(*foldAlgo)
	if !ok {
		return
	}
	if n.fold == nil {
		s.notifyError(fmt.Errorf("phlex: fold node %s has no partition configured", n.FullName),
			&Operation{Kind: OpDispatch, Node: n, Store: cur})
		return
	}
	ancestor, ok := raw.Parent(n.fold.partitionLevel)
	if !ok {
		s.notifyError(fmt.Errorf("phlex: fold node %s: no ancestor at level %q", n.FullName, n.fold.partitionLevel),
			&Operation{Kind: OpDispatch, Node: n, Store: cur})
		return
	}
	key := partitionKey(n, ancestor)

	pool := s.permits[n.FullName.String()]
	if err := pool.Acquire(s.ctx); err != nil {
		return
	}
	defer pool.Release()

	op := &Operation{Kind: OpDispatch, Node: n, Store: cur}
	failed := false
	if err := s.runExtensions(op, func() error {
		return s.partitions.Combine(key, algo, ins)
	}); err != nil {
		failed = true
		s.notifyError(err, op)
	} else {
		s.markObserved(n.FullName.String(), key)
	}
	s.history.Record(DispatchRecord{Node: n.FullName.String(), Level: cur.Level, Stage: cur.Stage, Failed: failed})
}

// dispatchUnfold evaluates the selection predicate, and if it passes,
// drains the generator, submitting one child store per generated
// payload tuple and, once exhausted, a flush store at the destination
// layer. A store already at or below the destination level (one of the
// unfold's own children or their descendants) is not split again.
func (s *Scheduler) dispatchUnfold(n *Node, cur, raw *Store) {
	ins, ok := s.resolveInputs(n, cur, raw)
	if !ok {
		return
	}
	algo, ok := n.Algorithm.(*unfoldAlgo)
	if !ok {
		return
	}
	if n.unfold == nil {
		s.notifyError(fmt.Errorf("phlex: unfold node %s has no destination layer configured", n.FullName),
			&Operation{Kind: OpDispatch, Node: n, Store: cur})
		return
	}
	if _, inside := raw.Parent(n.unfold.destinationLevel); inside {
		return
	}

	pool := s.permits[n.FullName.String()]
	if err := pool.Acquire(s.ctx); err != nil {
		return
	}
	defer pool.Release()

	op := &Operation{Kind: OpDispatch, Node: n, Store: cur}
	failed := false
	if err := s.runExtensions(op, func() error {
		selected, err := algo.selects(ins)
		if err != nil || !selected {
			return err
		}
		gen, err := algo.generate(ins)
		if err != nil {
			return err
		}
		count := 0
		for {
			values, more, err := gen.Next()
			if err != nil {
				return err
			}
			if !more {
				break
			}
			child := raw.MakeChild(n.unfold.destinationLevel, count, n.FullName.String())
			for i, name := range n.Outputs {
				if i >= len(values) {
					break
				}
				if err := child.Put(name, fmt.Sprintf("%T", values[i]), values[i]); err != nil {
					return err
				}
			}
			child.Seal()
			count++
			s.submitInternal(child)
		}
		flush := raw.MakeChildFlush(n.unfold.destinationLevel, count, n.FullName.String())
		s.submitInternal(flush)
		return nil
	}); err != nil {
		failed = true
		s.notifyError(err, op)
	}
	s.history.Record(DispatchRecord{Node: n.FullName.String(), Level: cur.Level, Stage: cur.Stage, Failed: failed})
}

// dispatchFlush finalizes every fold node whose partition boundary is
// flush's own level, for exactly the partition instance flush
// represents, and publishes each surviving finalizer's output into
// flush's parent as a continuation. A fold whose partition key never
// saw a successful combine call is still finalized (which tears down
// its worker) but its output is not published, so the count of a fold's
// outputs per level matches the number of distinct partition keys
// actually observed.
//
// A flush bypasses predicate gating but still observes the node's
// concurrency permits: two distinct partition keys finalizing at once
// on a Serial fold are serialized through the same pool every other
// dispatch path acquires.
func (s *Scheduler) dispatchFlush(flush *Store) {
	levelName := flush.Level.LevelName()
	for _, n := range s.catalog.NodesByKind(KindFold) {
		if n.fold == nil || n.fold.partitionLevel != levelName {
			continue
		}
		algo, ok := n.Algorithm.(*foldAlgo)
		if !ok {
			continue
		}
		key := partitionKey(n, flush)
		// Finalize runs unconditionally, observed or not: a key whose every
		// Combine call failed still started a partitionWorker goroutine
		// (partition.go's worker is lazily started on first Combine
		// regardless of outcome), and only Finalize tears it down. A key
		// that never saw any Combine at all costs nothing extra here,
		// since partitionManager.Finalize short-circuits straight to
		// algo.initial() when no worker was ever started for it.
		observed := s.wasObserved(n.FullName.String(), key)

		pool := s.permits[n.FullName.String()]
		if err := pool.Acquire(s.ctx); err != nil {
			return
		}

		op := &Operation{Kind: OpFlush, Node: n, Store: flush}
		var outs []any
		err := s.runExtensions(op, func() error {
			var ferr error
			outs, ferr = s.partitions.Finalize(key, algo)
			return ferr
		})
		// Released before the publish cascade: dispatchProcess below may
		// dispatch this same fold again and acquire the same pool.
		pool.Release()
		failed := err != nil
		if err != nil {
			s.notifyError(err, op)
		} else if observed {
			s.publishFoldOutput(n, flush, outs)
		}
		s.history.Record(DispatchRecord{Node: n.FullName.String(), Level: flush.Level, Stage: StageFlush, Failed: failed})
	}
}

func (s *Scheduler) publishFoldOutput(n *Node, flush *Store, outs []any) {
	parent := flush.parent
	if parent == nil {
		s.logger.Warn("phlex: fold flush has no parent store to publish into", zap.String("node", n.FullName.String()))
		return
	}
	cont := parent.MakeContinuation(n.FullName.String())
	if err := s.publishOutputs(n, cont, outs); err != nil {
		s.notifyError(err, &Operation{Kind: OpFlush, Node: n, Store: cont})
		return
	}
	cont.Seal()
	s.dispatchProcess(cont)
}

// publishOutputs writes each of n's declared outputs into store. A
// re-publish of an already-present name propagates ErrAlreadyPublished
// to the caller, which marks the id failed: two publishes of one name
// for the same id means the wiring is wrong, not the data.
func (s *Scheduler) publishOutputs(n *Node, store *Store, outs []any) error {
	for i, name := range n.Outputs {
		if i >= len(outs) {
			break
		}
		if err := store.Publish(name, fmt.Sprintf("%T", outs[i]), outs[i], n.FullName.String()); err != nil {
			return err
		}
	}
	return nil
}

// resolveInputs resolves every one of n's declared inputs by name,
// reporting ok=false (no dispatch, not an error) if any is missing —
// the same rule as a failed predicate: the node simply does not run for
// this id.
//
// This walks n.InputLabels rather than n.Inputs: Freeze resolves each
// label to the QualifiedName of the node that PRODUCES it (for dag
// edges and ambiguity checks), which is a node identity, not the bare
// product name the store is keyed by. InputLabels keeps that original
// bare name (SpecifiedLabel.Name) in the same order, one per resolved
// entry, so it is what dispatch needs here.
func (s *Scheduler) resolveInputs(n *Node, cur, raw *Store) ([]any, bool) {
	ins := make([]any, len(n.InputLabels))
	for i, lbl := range n.InputLabels {
		v, ok := s.resolveProduct(lbl.Name, cur, raw)
		if !ok {
			return nil, false
		}
		ins[i] = v
	}
	return ins, true
}

// resolveProduct is the two-store lookup every input and predicate
// resolution goes through: cur's own products first (what earlier
// layers in this pass have published), then raw's ancestor chain
// (seed products and true ancestors) — see dispatchProcess's doc
// comment for why a single ancestor walk from cur cannot do this alone.
func (s *Scheduler) resolveProduct(name string, cur, raw *Store) (any, bool) {
	if p, ok := cur.PeekOwn(name); ok {
		return p.Value, true
	}
	if p, _, ok := raw.MostDerived(name); ok {
		return p.Value, true
	}
	return nil, false
}

// predicateBlocked reports whether any of n's gating predicates is
// missing or false, short-circuiting the store so no output is emitted
// for this id. A missing predicate product — because the predicate node was
// itself gated off, or simply hasn't run yet — blocks the same as an
// explicit false, which is what lets gating cascade through a chain of
// predicates without separate bookkeeping.
func (s *Scheduler) predicateBlocked(n *Node, cur, raw *Store) bool {
	for _, lbl := range n.Predicates {
		v, ok := s.resolveProduct(lbl.Name, cur, raw)
		if !ok {
			return true
		}
		b, ok := v.(bool)
		if !ok || !b {
			return true
		}
	}
	return false
}

func partitionKey(n *Node, ancestor *Store) string {
	return n.FullName.String() + "@" + ancestor.Level.String()
}

func (s *Scheduler) markObserved(node, key string) {
	s.observedMu.Lock()
	defer s.observedMu.Unlock()
	set, ok := s.observed[node]
	if !ok {
		set = make(map[string]bool)
		s.observed[node] = set
	}
	set[key] = true
}

func (s *Scheduler) wasObserved(node, key string) bool {
	s.observedMu.Lock()
	defer s.observedMu.Unlock()
	return s.observed[node][key]
}

// runExtensions wraps fn in every registered extension's Wrap hook,
// outermost-registered-first, and recovers a panic into an error so one
// node's bug fails only its own id rather than the whole dispatch pass.
func (s *Scheduler) runExtensions(op *Operation, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.notifyPanic(op, r, stack)
			err = NewNodeError(op.Node.FullName.String(), op.Store.Level,
				fmt.Errorf("panic: %v", r), string(op.Kind), stack)
		}
	}()

	wrapped := fn
	for i := len(s.extensions) - 1; i >= 0; i-- {
		ext := s.extensions[i]
		next := wrapped
		wrapped = func() error { return ext.Wrap(s.ctx, next, op) }
	}
	return wrapped()
}

// notifyError logs a dispatch failure and fans it out to every
// extension's OnError hook, wrapped as a *NodeError so hooks and logs
// carry the node, level, and phase without re-deriving them from op.
func (s *Scheduler) notifyError(err error, op *Operation) {
	var nerr *NodeError
	if !errors.As(err, &nerr) {
		err = NewNodeError(op.Node.FullName.String(), op.Store.Level, err, string(op.Kind), nil)
	}
	s.logger.Warn("phlex: node dispatch failed",
		zap.String("node", op.Node.FullName.String()),
		zap.String("kind", string(op.Kind)),
		zap.Error(err))
	for _, ext := range s.extensions {
		ext.OnError(err, op)
	}
}

func (s *Scheduler) notifyPanic(op *Operation, recovered any, stack []byte) {
	s.logger.Error("phlex: node dispatch panicked",
		zap.String("node", op.Node.FullName.String()),
		zap.Any("recovered", recovered))
	for _, ext := range s.extensions {
		ext.OnPanic(op, recovered, stack)
	}
}
