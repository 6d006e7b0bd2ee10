package phlex

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/phlex-run/phlex/internal/dag"
)

// Catalog is the registry of every Node a set of plugins have declared.
// Registration accumulates errors rather than failing fast, so a full
// batch of misdeclarations can be reported at once; the accumulation is
// built on go.uber.org/multierr so the caller can both print one
// combined message and, if it wants to, decompose the batch with
// multierr.Errors.
type Catalog struct {
	mu sync.Mutex

	byFullName map[string]*Node
	byKind     map[Kind][]*Node
	producers  map[string][]QualifiedName // bare product name -> producing full names

	errs error

	frozen bool
	graph  *dag.Graph
	layers [][]string
}

// NewCatalog returns an empty, open catalog ready to accept registrations.
func NewCatalog() *Catalog {
	return &Catalog{
		byFullName: make(map[string]*Node),
		byKind:     make(map[Kind][]*Node),
		producers:  make(map[string][]QualifiedName),
	}
}

// insert is called by newRegistrar when a typed constructor
// (Transform1, Predicate1, Fold1, Unfold1, Observer1, Output1, ...)
// creates its Registrar, eagerly placing the
// node into the catalog so every later fluent call on the same Registrar
// mutates this exact entry. Duplicate full names are recorded as an
// error rather than panicking or overwriting the previous entry, since
// a full name must be unique per catalog. Reports whether the node actually
// made it into the catalog, so the Registrar knows not to index a
// rejected duplicate's outputs.
func (c *Catalog) insert(n *Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := n.FullName.String()
	if _, exists := c.byFullName[key]; exists {
		c.errs = multierr.Append(c.errs, fmt.Errorf("%w: %s", ErrDuplicateName, key))
		return false
	}
	c.byFullName[key] = n
	c.byKind[n.Kind] = append(c.byKind[n.Kind], n)
	for _, out := range n.Outputs {
		c.producers[out] = append(c.producers[out], n.FullName)
	}
	return true
}

// addError records a build-time error against the catalog's shared
// error vector without needing a specific node to blame it on (e.g. an
// arity mismatch discovered while resolving a label).
func (c *Catalog) addError(err error) {
	c.mu.Lock()
	c.errs = multierr.Append(c.errs, err)
	c.mu.Unlock()
}

// Errors returns every registration error accumulated so far, decomposed
// into its individual members via multierr.Errors.
func (c *Catalog) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return multierr.Errors(c.errs)
}

// Nodes returns every registered node, sorted by full name for
// deterministic iteration; the registration-order tie-break is
// preserved separately via each kind's byKind slice, which is
// insertion-ordered.
func (c *Catalog) Nodes() []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Node, 0, len(c.byFullName))
	for _, n := range c.byFullName {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName.Less(out[j].FullName) })
	return out
}

// NodesByKind returns nodes of a given kind in registration order —
// the order the scheduler uses to break ties between nodes whose
// dispatch is otherwise unordered.
func (c *Catalog) NodesByKind(k Kind) []*Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Node, len(c.byKind[k]))
	copy(out, c.byKind[k])
	return out
}

// Freeze resolves every node's input and predicate labels against the
// producer index, validates arity, and builds the dependency graph used
// for cycle detection and scheduler layering. A bare input label (no
// qualifier) that no registered node produces is taken as a product the
// source seeds into its stores: it resolves to an unqualified name and
// adds no graph edge. A qualified input label or a When label with no
// matching producer is an error. It must be called exactly
// once before the catalog is handed to a scheduler; calling it twice, or
// calling it when prior registration errors exist, is itself an error.
func (c *Catalog) Freeze() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrCatalogFrozen
	}
	if c.errs != nil {
		return fmt.Errorf("phlex: catalog has registration errors, refusing to freeze: %w", c.errs)
	}

	g := dag.New()
	for _, n := range c.byFullName {
		g.AddNode(n.FullName.String())
	}

	for _, n := range c.byFullName {
		resolvedIn := make([]QualifiedName, 0, len(n.InputLabels))
		for _, lbl := range n.InputLabels {
			if lbl.Qualifier == nil && len(c.producers[lbl.Name]) == 0 {
				resolvedIn = append(resolvedIn, QualifiedName{Qualifier: UnspecifiedAlgorithm(), Name: lbl.Name})
				continue
			}
			qn, err := lbl.resolve(c.producers)
			if err != nil {
				c.errs = multierr.Append(c.errs, fmt.Errorf("node %s: %w", n.FullName, err))
				continue
			}
			resolvedIn = append(resolvedIn, qn)
			if producer, ok := c.byFullName[qn.String()]; ok {
				g.AddEdge(n.FullName.String(), producer.FullName.String())
			}
		}
		n.Inputs = resolvedIn

		if n.Algorithm != nil && n.Algorithm.arity() != len(n.InputLabels) {
			c.errs = multierr.Append(c.errs, fmt.Errorf("%w: node %s wants %d inputs, got %d labels",
				ErrArityMismatch, n.FullName, n.Algorithm.arity(), len(n.InputLabels)))
		}

		resolvedPred := make([]QualifiedName, 0, len(n.Predicates))
		for _, lbl := range n.Predicates {
			qn, err := lbl.resolve(c.producers)
			if err != nil {
				c.errs = multierr.Append(c.errs, fmt.Errorf("%w: node %s predicate %s", ErrUnknownPredicate, n.FullName, lbl))
				continue
			}
			resolvedPred = append(resolvedPred, qn)
			if producer, ok := c.byFullName[qn.String()]; ok {
				g.AddEdge(n.FullName.String(), producer.FullName.String())
			}
		}
		n.PredicateQN = resolvedPred
	}

	if c.errs != nil {
		return fmt.Errorf("phlex: catalog failed to freeze: %w", c.errs)
	}

	layers, err := g.Layers()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCycle, err)
	}

	c.graph = g
	c.layers = layers
	c.frozen = true
	return nil
}

// Layers returns the dispatch layers computed by Freeze: layer 0 nodes
// depend on nothing else in the catalog, layer N's nodes depend only on
// nodes in layers 0..N-1. Used by the scheduler to decide which nodes
// could in principle run concurrently, and by the debug extension to
// render the catalog's shape.
func (c *Catalog) Layers() ([][]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.frozen {
		return nil, ErrCatalogNotFrozen
	}
	return c.layers, nil
}

// Lookup returns the node registered under full, if any.
func (c *Catalog) Lookup(full QualifiedName) (*Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.byFullName[full.String()]
	return n, ok
}

// LookupFullName returns the node whose full name renders as name (the
// same string Catalog.Layers works in terms of), if any.
func (c *Catalog) LookupFullName(name string) (*Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.byFullName[name]
	return n, ok
}
