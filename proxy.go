package phlex

// Proxy is the typed facade a module's create_module function receives
// to register algorithms into a Catalog. It knows its
// own plugin name so every algorithm it registers gets a full
// AlgorithmName of (plugin, algorithmName) without the caller repeating
// the plugin string at every call site.
//
// The node-kind-specific typed constructors (Transform1..4, Predicate1..3,
// Observer1..3, Output1..3, Fold1..3/FoldWithFinalizer1..3, Unfold1..3)
// live in
// algorithms_generated.go as package-level generic functions rather than
// generic methods, since Go methods cannot carry their own type
// parameters.
type Proxy struct {
	catalog *Catalog
	plugin  string
}

// NewProxy returns a Proxy that registers algorithms under plugin into
// catalog.
func NewProxy(catalog *Catalog, plugin string) *Proxy {
	return &Proxy{catalog: catalog, plugin: plugin}
}

// Catalog exposes the underlying catalog, e.g. so a module can look up
// another module's nodes before wiring its own When(...) labels.
func (p *Proxy) Catalog() *Catalog { return p.catalog }

// Plugin returns the plugin name this proxy registers algorithms under.
func (p *Proxy) Plugin() string { return p.plugin }

// newNode builds the QualifiedName for algorithmName under this proxy's
// plugin and inserts a fresh Node of the given kind wrapping algo,
// returning the Registrar the typed constructors hand back to callers.
// The node's own full name is qualified by its own AlgorithmName — the
// (plugin, algorithm) pair serves both as the node's qualifier and as
// the disambiguating name, since a node's identity within a catalog is
// exactly that pair.
func (p *Proxy) newNode(kind Kind, algorithmName string, algo algorithm) *Registrar {
	an := PluginAndAlgorithm(p.plugin, algorithmName)
	full := QualifiedName{Qualifier: an, Name: algorithmName}
	node := &Node{
		FullName:    full,
		Kind:        kind,
		Algorithm:   algo,
		Concurrency: Serial(),
	}
	return newRegistrar(p.catalog, node)
}

// BoundProxy binds a Proxy to a shared algorithm instance so
// member-function algorithms can close over Instance directly, sharing
// one instance across every algorithm registered through it. There is no
// runtime "unbound proxy refuses member binding" guard: an algorithm
// closure either captures a BoundProxy's Instance or it doesn't, and
// that is enforced at compile time by what variables are in scope.
type BoundProxy[T any] struct {
	*Proxy
	Instance T
}

// Make returns a Proxy bound to instance, for registering algorithms
// implemented as instance's methods.
func Make[T any](p *Proxy, instance T) *BoundProxy[T] {
	return &BoundProxy[T]{Proxy: p, Instance: instance}
}
