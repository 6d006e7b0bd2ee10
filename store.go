package phlex

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Stage distinguishes a store created for ordinary event processing from
// one created to carry end-of-level flush products.
type Stage int

const (
	StageProcess Stage = iota
	StageFlush
)

func (s Stage) String() string {
	if s == StageFlush {
		return "flush"
	}
	return "process"
}

// Product is a single published value: an opaque payload plus the
// declared type name backend/producer have agreed on, kept
// alongside the value so persistence and downstream consumers can check
// it without the core interpreting the payload itself.
type Product struct {
	TypeName string
	Value    any
	Producer string // full name of the node that published this product
}

// Store is one node of the product-store tree: an immutable-once-sealed
// bag of products, anchored to a LevelID, with a non-owning pointer back
// to its parent. Product lookups resolve through the parent chain, so a
// reader at any level sees everything its ancestors published.
//
// A Store is append-only while open: Publish only ever grows the map,
// never rewrites an existing entry, and Seal freezes it so that any
// further attempt fails with ErrStoreFinalized.
type Store struct {
	ID       uuid.UUID
	Level    LevelID
	Source   string
	Stage    Stage
	parent   *Store

	mu       sync.RWMutex
	products map[string]Product
	sealed   bool
}

// Base constructs the root store of a run, at the job-level LevelID, with
// no parent and no products yet.
func Base(job, source string) *Store {
	return &Store{
		ID:       uuid.New(),
		Level:    RootLevel(job),
		Source:   source,
		Stage:    StageProcess,
		products: make(map[string]Product),
	}
}

// IsFlush reports whether this store is the end-of-level sentinel for
// its id rather than a carrier of process products.
func (s *Store) IsFlush() bool { return s.Stage == StageFlush }

// MakeChild derives a new process-stage store one level below the
// receiver, sharing the receiver as its immutable parent.
func (s *Store) MakeChild(levelName string, number int, source string) *Store {
	return &Store{
		ID:       uuid.New(),
		Level:    s.Level.Child(levelName, number),
		Source:   source,
		Stage:    StageProcess,
		parent:   s,
		products: make(map[string]Product),
	}
}

// MakeChildWith derives a child store with products already embedded,
// the shape a source typically yields: one store per unit of data with
// its seed products in place. Type names are derived from the
// values' dynamic types; sources needing explicit backend-agreed type
// names use MakeChild plus Publish instead.
func (s *Store) MakeChildWith(levelName string, number int, source string, products map[string]any) *Store {
	child := s.MakeChild(levelName, number, source)
	for name, v := range products {
		child.products[name] = Product{TypeName: fmt.Sprintf("%T", v), Value: v, Producer: source}
	}
	return child
}

// MakeChildFlush derives a flush-stage store one level below the
// receiver, at the given levelName and number, used by unfold to signal
// the end of a generated sequence at its destination layer once the
// generator is exhausted. number should not collide with any
// sibling MakeChild's number for the same parent; the scheduler passes
// the count of children already generated.
func (s *Store) MakeChildFlush(levelName string, number int, source string) *Store {
	return &Store{
		ID:       uuid.New(),
		Level:    s.Level.Child(levelName, number),
		Source:   source,
		Stage:    StageFlush,
		parent:   s,
		products: make(map[string]Product),
	}
}

// MakeContinuation derives a sibling store at the same LevelID as the
// receiver (same level name and number) but with a new identity and an
// empty product map, used when a node re-enters the same level for a
// subsequent unit of work.
func (s *Store) MakeContinuation(source string) *Store {
	return &Store{
		ID:       uuid.New(),
		Level:    s.Level,
		Source:   source,
		Stage:    s.Stage,
		parent:   s.parent,
		products: make(map[string]Product),
	}
}

// MakeFlush derives a flush-stage store at the receiver's level, the
// sentinel the scheduler uses to close that level and fire fold
// finalization.
func (s *Store) MakeFlush(source string) *Store {
	return &Store{
		ID:       uuid.New(),
		Level:    s.Level,
		Source:   source,
		Stage:    StageFlush,
		parent:   s.parent,
		products: make(map[string]Product),
	}
}

// Parent walks the store's ancestry looking for the nearest ancestor
// whose level matches levelName, mirroring LevelID.Parent but returning
// the Store itself (so its published products are reachable).
func (s *Store) Parent(levelName string) (*Store, bool) {
	cur := s
	for cur != nil {
		if cur.Level.LevelName() == levelName {
			return cur, true
		}
		cur = cur.parent
	}
	return nil, false
}

// Publish publishes a product under name at this store, tagged with the
// full name of the node that produced it. Producer attribution is
// tracked per product rather than per store, since the scheduler shares
// one continuation store across every node that dispatches for a given
// id. It is an error to publish the same name twice at
// the same store (append-only), or to publish to a sealed store.
func (s *Store) Publish(name, typeName string, value any, producer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return ErrStoreFinalized
	}
	if _, exists := s.products[name]; exists {
		return ErrAlreadyPublished
	}
	s.products[name] = Product{TypeName: typeName, Value: value, Producer: producer}
	return nil
}

// Put publishes a product under name with the store's own source as its
// producer attribution; a thin convenience over Publish for callers
// (tests, the driver seeding raw data) that aren't a registered node.
func (s *Store) Put(name string, typeName string, value any) error {
	return s.Publish(name, typeName, value, s.Source)
}

// StoreForProduct walks from the receiver up through its ancestors and
// returns the nearest store that has published name, or nil and false if
// no store in the chain owns it.
func (s *Store) StoreForProduct(name string) (*Store, bool) {
	_, owner, ok := s.MostDerived(name)
	return owner, ok
}

// Seal freezes the store so further Publish calls fail; called by
// the scheduler once every node that could publish into this store has
// completed for this id.
func (s *Store) Seal() {
	s.mu.Lock()
	s.sealed = true
	s.mu.Unlock()
}

// PeekOwn looks up name among the products published directly at this
// store, without walking ancestors. Used by the scheduler to check the
// id's shared continuation before falling back to the originally
// delivered store's own ancestry. Continuations are siblings of the
// store they derive from, so a dispatch pass threads both the
// continuation and the original store through resolution by hand rather
// than relying on a single ancestor walk; see DESIGN.md.
func (s *Store) PeekOwn(name string) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[name]
	return p, ok
}

// MostDerived resolves name by walking from the receiver up through its
// ancestors, returning the first (most specific) store that has
// published it. This is the single resolution rule used both for
// ordinary input binding and for predicate gating.
func (s *Store) MostDerived(name string) (Product, *Store, bool) {
	cur := s
	for cur != nil {
		cur.mu.RLock()
		p, ok := cur.products[name]
		cur.mu.RUnlock()
		if ok {
			return p, cur, true
		}
		cur = cur.parent
	}
	return Product{}, nil, false
}

// MostDerivedStore selects, between two stores, the one deeper in the
// hierarchy: a descendant wins over its ancestor, and two incomparable
// stores resolve to the second.
func MostDerivedStore(a, b *Store) *Store {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Level.IsAncestorOf(a.Level) {
		return a
	}
	return b
}

// MostDerivedOf generalizes MostDerivedStore to any number of stores by
// left-fold, used when a node's inputs resolve to different ancestor
// stores and one must be chosen as the dispatch anchor.
func MostDerivedOf(stores ...*Store) *Store {
	var cur *Store
	for _, s := range stores {
		cur = MostDerivedStore(cur, s)
	}
	return cur
}

// Snapshot returns a shallow copy of the products published directly at
// this store (not its ancestors), useful for debug rendering and tests.
func (s *Store) Snapshot() map[string]Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Product, len(s.products))
	for k, v := range s.products {
		out[k] = v
	}
	return out
}
