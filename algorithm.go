package phlex

import "fmt"

// transformAlgo is the type-erased shape a Transform node's algorithm
// takes once wrapped by one of the typed constructors in
// algorithms_generated.go: N resolved input values in, a tuple of
// declared output values out.
type transformAlgo struct {
	n  int
	fn func(ins []any) ([]any, error)
}

func (t *transformAlgo) arity() int                      { return t.n }
func (t *transformAlgo) invoke(ins []any) ([]any, error) { return t.fn(ins) }

// predicateAlgo wraps a boolean-producing function of N inputs. Its
// single output slot is always the gating boolean; predicate nodes
// publish it under the product name declared via OutputProducts so
// downstream When(...) clauses can reference it by name.
type predicateAlgo struct {
	n  int
	fn func(ins []any) (bool, error)
}

func (p *predicateAlgo) arity() int { return p.n }
func (p *predicateAlgo) invoke(ins []any) ([]any, error) {
	ok, err := p.fn(ins)
	if err != nil {
		return nil, err
	}
	return []any{ok}, nil
}

// observerAlgo wraps a side-effecting function of N inputs that never
// publishes.
type observerAlgo struct {
	n  int
	fn func(ins []any) error
}

func (o *observerAlgo) arity() int { return o.n }
func (o *observerAlgo) invoke(ins []any) ([]any, error) {
	return nil, o.fn(ins)
}

// outputAlgo wraps a persistence-side-effect function of N inputs; like
// observer it never publishes, but it is gated by When(...) rather than
// feeding a downstream predicate.
type outputAlgo struct {
	n  int
	fn func(ins []any) error
}

func (o *outputAlgo) arity() int { return o.n }
func (o *outputAlgo) invoke(ins []any) ([]any, error) {
	return nil, o.fn(ins)
}

// foldAlgo carries a fold's per-partition machinery: combine folds one
// input tuple into the running state, and finalize turns the terminal
// state into the node's published outputs once the partition's flush
// store arrives.
type foldAlgo struct {
	n        int
	combine  func(state any, ins []any) (any, error)
	finalize func(state any) ([]any, error)
	initial  func() any
}

func (f *foldAlgo) arity() int { return f.n }

// invoke is never called directly on a foldAlgo by the scheduler — folds
// are dispatched through combine/finalize against per-partition state,
// not the plain stateless invoke path every other kind uses. It panics
// to catch wiring mistakes rather than silently doing the wrong thing.
func (f *foldAlgo) invoke(ins []any) ([]any, error) {
	panic(fmt.Sprintf("phlex: foldAlgo.invoke called directly (arity %d); folds dispatch via combine/finalize", f.n))
}

// unfoldAlgo wraps a parent-selection predicate and a generator that
// lazily produces one payload tuple per child store.
type unfoldAlgo struct {
	n        int
	selects  func(ins []any) (bool, error)
	generate func(ins []any) (Generator, error)
}

func (u *unfoldAlgo) arity() int { return u.n }
func (u *unfoldAlgo) invoke(ins []any) ([]any, error) {
	panic("phlex: unfoldAlgo.invoke called directly; unfolds dispatch via selects/generate")
}

// Generator produces one child payload tuple at a time for an unfold
// node. Next returns (values, true, nil) for each child in sequence and
// (nil, false, nil) once exhausted; an error aborts the unfold for this
// parent id.
type Generator interface {
	Next() ([]any, bool, error)
}

// SliceGenerator adapts a pre-computed slice of payload tuples to the
// Generator interface, the common case when the unfold function can
// produce every child eagerly, e.g. splitting a fixed-size array
// product into one child per element.
type SliceGenerator struct {
	values [][]any
	pos    int
}

// NewSliceGenerator wraps values, one payload tuple per child.
func NewSliceGenerator(values [][]any) *SliceGenerator {
	return &SliceGenerator{values: values}
}

func (g *SliceGenerator) Next() ([]any, bool, error) {
	if g.pos >= len(g.values) {
		return nil, false, nil
	}
	v := g.values[g.pos]
	g.pos++
	return v, true, nil
}
