package phlex

// Kind enumerates the six algorithm-node shapes a pipeline can declare.
type Kind int

const (
	KindTransform Kind = iota
	KindPredicate
	KindFold
	KindUnfold
	KindObserver
	KindOutput
)

func (k Kind) String() string {
	switch k {
	case KindTransform:
		return "transform"
	case KindPredicate:
		return "predicate"
	case KindFold:
		return "fold"
	case KindUnfold:
		return "unfold"
	case KindObserver:
		return "observer"
	case KindOutput:
		return "output"
	default:
		return "unknown"
	}
}

// Concurrency names how many ids a node may have in flight at once.
// Serial is the n=1 case spelled out for readability; N holds any other
// explicit bound.
type Concurrency struct {
	kind concurrencyKind
	n    int
}

type concurrencyKind int

const (
	concurrencySerial concurrencyKind = iota
	concurrencyUnlimited
	concurrencyN
)

// Serial allows exactly one in-flight invocation at a time.
func Serial() Concurrency { return Concurrency{kind: concurrencySerial} }

// Unlimited allows any number of concurrent invocations.
func Unlimited() Concurrency { return Concurrency{kind: concurrencyUnlimited} }

// LimitTo allows up to n concurrent invocations.
func LimitTo(n int) Concurrency {
	if n <= 0 {
		return Serial()
	}
	return Concurrency{kind: concurrencyN, n: n}
}

// Permits returns the weighted-semaphore size for this concurrency
// setting, or 0 to mean "do not gate at all" (Unlimited).
func (c Concurrency) Permits() int64 {
	switch c.kind {
	case concurrencySerial:
		return 1
	case concurrencyN:
		return int64(c.n)
	default:
		return 0
	}
}

func (c Concurrency) String() string {
	switch c.kind {
	case concurrencySerial:
		return "serial"
	case concurrencyUnlimited:
		return "unlimited"
	default:
		return "n"
	}
}

// foldSpec carries the extra configuration a fold node needs beyond what
// its algorithm already knows (combine/finalize/initial live on the
// foldAlgo itself, set by Fold1/FoldWithFinalizer1): which level name
// identifies the partition boundary. Invocations sharing the same ancestor
// store at this level are serialized against each other; distinct
// partitions may run concurrently.
type foldSpec struct {
	partitionLevel string
}

// unfoldSpec carries the destination level an unfold node fans its
// parent store out into.
type unfoldSpec struct {
	destinationLevel string
}

// Node is a fully-resolved catalog entry: a registered algorithm plus
// everything the scheduler needs to dispatch it — its input bindings
// (resolved QualifiedNames, not raw labels, by the time the catalog is
// frozen), its gating predicates, the products it is declared to
// publish, and its concurrency limit.
//
// Node is mutated in place by the Registrar's fluent builder calls
// (When, OutputProducts, Partition, DestinationLayer) between the moment
// it is inserted into the catalog and the moment the catalog is frozen;
// see registrar.go for why construction is eager rather than deferred to
// scope exit.
type Node struct {
	FullName    QualifiedName
	Kind        Kind
	Algorithm   algorithm
	InputLabels []SpecifiedLabel
	Inputs      []QualifiedName // resolved at Freeze
	Predicates  []SpecifiedLabel
	PredicateQN []QualifiedName // resolved at Freeze
	Outputs     []string
	Concurrency Concurrency

	fold   *foldSpec
	unfold *unfoldSpec

	metadata map[string]any
}

// algorithm is the type-erased shape every arity-specific constructor in
// algorithms_generated.go ultimately produces: a function from a slice of
// resolved input product values to a slice of output product values.
type algorithm interface {
	arity() int
	invoke(ins []any) ([]any, error)
}
