package phlex

import "github.com/phlex-run/phlex/pkg/meta"

// Registrar is the fluent handle returned by every typed constructor in
// algorithms_generated.go (Transform1..4, Predicate1..3, Observer1..3,
// Output1..3, Fold1..3/FoldWithFinalizer1..3, Unfold1..3). Each fluent call
// mutates the single *Node the builder method already placed in the
// catalog, rather than deferring construction to scope exit the way the
// original C++ registrar does with its destructor.
//
// Design note (see DESIGN.md for the full rationale):
// Go has no destructors, and the property this module actually needs to
// preserve — "every chained option is applied exactly once before the
// node is installed" — falls out for free from eager-insert-then-mutate,
// since there is exactly one Node value, inserted once at first call,
// and every subsequent fluent call mutates that same value through the
// pointer the Registrar holds. No finalizer, no GC-timing dependency.
type Registrar struct {
	catalog  *Catalog
	node     *Node
	inserted bool
}

func newRegistrar(catalog *Catalog, node *Node) *Registrar {
	return &Registrar{catalog: catalog, node: node, inserted: catalog.insert(node)}
}

// InputFamily declares the ordered input labels this node consumes. The
// number of labels must equal the algorithm's arity; a mismatch is
// recorded at Freeze time.
func (r *Registrar) InputFamily(labels ...SpecifiedLabel) *Registrar {
	r.node.InputLabels = labels
	return r
}

// When adds a gating predicate: the node will not be dispatched for an id
// unless every predicate added this way evaluates true for that id.
func (r *Registrar) When(predicates ...SpecifiedLabel) *Registrar {
	r.node.Predicates = append(r.node.Predicates, predicates...)
	return r
}

// OutputProducts declares the product names this node publishes. For
// transform and unfold nodes this is required before Freeze; for
// predicate and observer nodes it is typically left empty. A node whose
// registration was rejected as a duplicate still records its declared
// outputs on itself, but never touches the catalog's producer index —
// the surviving original keeps sole claim to those names.
func (r *Registrar) OutputProducts(names ...string) *Registrar {
	existing := make(map[string]bool, len(r.node.Outputs))
	for _, o := range r.node.Outputs {
		existing[o] = true
	}
	for _, name := range names {
		if !existing[name] {
			r.node.Outputs = append(r.node.Outputs, name)
			existing[name] = true
			if r.inserted {
				r.catalog.mu.Lock()
				r.catalog.producers[name] = append(r.catalog.producers[name], r.node.FullName)
				r.catalog.mu.Unlock()
			}
		}
	}
	return r
}

// Concurrent overrides the node's default concurrency limit (Serial
// unless otherwise specified at construction).
func (r *Registrar) Concurrent(c Concurrency) *Registrar {
	r.node.Concurrency = c
	return r
}

// Partition configures a fold node's partition boundary: invocations
// sharing an ancestor store at levelName are serialized against each
// other in arrival order, while distinct partitions may run
// concurrently. Calling
// Partition on a non-fold node is recorded as a build error instead of a
// panic, matching every other kind-specific fluent method.
func (r *Registrar) Partition(levelName string) *Registrar {
	if r.node.Kind != KindFold {
		r.catalog.addError(wrongKindError(r.node, KindFold, "Partition"))
		return r
	}
	r.node.fold = &foldSpec{partitionLevel: levelName}
	return r
}

// DestinationLayer configures the level name an unfold node fans its
// parent store out into.
func (r *Registrar) DestinationLayer(levelName string) *Registrar {
	if r.node.Kind != KindUnfold {
		r.catalog.addError(wrongKindError(r.node, KindUnfold, "DestinationLayer"))
		return r
	}
	r.node.unfold = &unfoldSpec{destinationLevel: levelName}
	return r
}

// Meta attaches opaque metadata to the node (e.g. documentation, owner
// tags); not interpreted by the scheduler. Backed by pkg/meta's typed
// bag, so callers can retrieve a typed value back out via NodeMeta
// instead of a raw type assertion.
func (r *Registrar) Meta(key string, value any) *Registrar {
	if r.node.metadata == nil {
		r.node.metadata = make(map[string]any)
	}
	meta.Set(r.node.metadata, key, value)
	return r
}

// NodeMeta retrieves a typed metadata value previously attached via
// Meta, reporting an error if the key is missing or not convertible to T.
func NodeMeta[T any](n *Node, key string) (T, error) {
	return meta.Get[T](n.metadata, key)
}

func wrongKindError(n *Node, want Kind, method string) error {
	return &kindMismatchError{node: n.FullName.String(), have: n.Kind, want: want, method: method}
}

type kindMismatchError struct {
	node   string
	have   Kind
	want   Kind
	method string
}

func (e *kindMismatchError) Error() string {
	return "phlex: " + e.method + " is only valid on " + e.want.String() + " nodes, but " + e.node + " is " + e.have.String()
}
