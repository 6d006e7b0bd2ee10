package phlex

import "context"

// OperationKind names what a Scheduler is doing when it calls into an
// Extension's Wrap hook.
type OperationKind string

const (
	OpDispatch OperationKind = "dispatch" // a node's algorithm running for one store
	OpFlush    OperationKind = "flush"    // a fold's finalizer running for a flush store
)

// Operation describes the node and store a Wrap/OnError call concerns.
type Operation struct {
	Kind  OperationKind
	Node  *Node
	Store *Store
}

// Extension hooks into scheduler dispatch. The hook set is trimmed to
// the lifecycle events a dataflow scheduler actually has: no
// invalidation or cleanup concepts, since stores are append-only and
// never rewritten. Wrap lets an
// extension instrument every dispatch (timing, tracing); OnError and
// OnPanic observe failures without being able to change the scheduler's
// per-id failure-and-continue policy.
type Extension interface {
	Name() string
	Wrap(ctx context.Context, next func() error, op *Operation) error
	OnError(err error, op *Operation)
	OnPanic(op *Operation, recovered any, stack []byte)
}

// BaseExtension provides no-op defaults so concrete extensions only need
// to override the hooks they care about.
type BaseExtension struct {
	name string
}

// NewBaseExtension returns a BaseExtension identifying itself as name.
func NewBaseExtension(name string) BaseExtension { return BaseExtension{name: name} }

func (e BaseExtension) Name() string { return e.name }

func (e BaseExtension) Wrap(ctx context.Context, next func() error, op *Operation) error {
	return next()
}

func (e BaseExtension) OnError(err error, op *Operation)                   {}
func (e BaseExtension) OnPanic(op *Operation, recovered any, stack []byte) {}
