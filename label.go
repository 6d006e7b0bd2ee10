package phlex

import "fmt"

// Specificity describes how precisely an AlgorithmName pins down the
// plugin and algorithm it refers to. A registration can name both, only
// the algorithm (leaving the plugin open), or neither (a wildcard that
// matches anything of the right shape).
type Specificity int

const (
	// SpecifyNeither matches any plugin and any algorithm name.
	SpecifyNeither Specificity = iota
	// SpecifyAlgorithm pins the algorithm name but leaves the plugin open.
	SpecifyAlgorithm
	// SpecifyBoth pins both the plugin and the algorithm name.
	SpecifyBoth
)

func (s Specificity) String() string {
	switch s {
	case SpecifyNeither:
		return "neither"
	case SpecifyAlgorithm:
		return "algorithm"
	case SpecifyBoth:
		return "both"
	default:
		return "unknown"
	}
}

// AlgorithmName identifies the plugin/algorithm pair a node was registered
// under, along with how much of that pair is actually pinned down.
type AlgorithmName struct {
	Plugin    string
	Algorithm string
	Specified Specificity
}

// UnspecifiedAlgorithm returns the wildcard AlgorithmName used by labels
// that qualify a product by name alone.
func UnspecifiedAlgorithm() AlgorithmName {
	return AlgorithmName{Specified: SpecifyNeither}
}

// AlgorithmOnly pins the algorithm name, leaving the owning plugin open.
func AlgorithmOnly(algorithm string) AlgorithmName {
	return AlgorithmName{Algorithm: algorithm, Specified: SpecifyAlgorithm}
}

// PluginAndAlgorithm pins both the plugin and the algorithm name.
func PluginAndAlgorithm(plugin, algorithm string) AlgorithmName {
	return AlgorithmName{Plugin: plugin, Algorithm: algorithm, Specified: SpecifyBoth}
}

// Matches reports whether a concrete registration (always SpecifyBoth)
// satisfies this, possibly partial, AlgorithmName.
func (a AlgorithmName) Matches(concrete AlgorithmName) bool {
	switch a.Specified {
	case SpecifyNeither:
		return true
	case SpecifyAlgorithm:
		return a.Algorithm == concrete.Algorithm
	case SpecifyBoth:
		return a.Plugin == concrete.Plugin && a.Algorithm == concrete.Algorithm
	default:
		return false
	}
}

func (a AlgorithmName) String() string {
	switch a.Specified {
	case SpecifyNeither:
		return "*::*"
	case SpecifyAlgorithm:
		return fmt.Sprintf("*::%s", a.Algorithm)
	default:
		return fmt.Sprintf("%s::%s", a.Plugin, a.Algorithm)
	}
}

// QualifiedName is a product or node full name: a qualifier (which
// algorithm claims it) plus the bare name. Qualified names order
// lexicographically on (Qualifier, Name), which is what the catalog uses
// for its deterministic duplicate-detection and iteration order.
type QualifiedName struct {
	Qualifier AlgorithmName
	Name      string
}

// Less implements the (Qualifier, Name) total order named in the data
// model: qualifiers compare by their string form first, names break ties.
func (q QualifiedName) Less(other QualifiedName) bool {
	if q.Qualifier.String() != other.Qualifier.String() {
		return q.Qualifier.String() < other.Qualifier.String()
	}
	return q.Name < other.Name
}

func (q QualifiedName) String() string {
	return fmt.Sprintf("%s/%s", q.Qualifier.String(), q.Name)
}

// SpecifiedLabel is how pipeline authors refer to an input or gating
// product: a bare name plus an optional qualifier. Build-time resolution
// against the catalog turns this into a concrete QualifiedName.
type SpecifiedLabel struct {
	Name      string
	Qualifier *AlgorithmName
}

// Label builds an unqualified SpecifiedLabel; the catalog resolves it
// against whichever registered algorithm produced a matching name.
func Label(name string) SpecifiedLabel {
	return SpecifiedLabel{Name: name}
}

// QualifiedLabel builds a SpecifiedLabel pinned to a specific algorithm.
func QualifiedLabel(name string, qualifier AlgorithmName) SpecifiedLabel {
	q := qualifier
	return SpecifiedLabel{Name: name, Qualifier: &q}
}

func (l SpecifiedLabel) String() string {
	if l.Qualifier == nil {
		return l.Name
	}
	return fmt.Sprintf("%s@%s", l.Name, l.Qualifier.String())
}

// resolve turns a SpecifiedLabel into the QualifiedName of whichever
// catalog entry produces it, reporting an error if none or more than one
// producer matches; an ambiguous label is a build-time error.
func (l SpecifiedLabel) resolve(producers map[string][]QualifiedName) (QualifiedName, error) {
	candidates := producers[l.Name]
	if l.Qualifier == nil {
		switch len(candidates) {
		case 0:
			return QualifiedName{}, fmt.Errorf("%w: no producer for label %q", ErrUnresolvedLabel, l.Name)
		case 1:
			return candidates[0], nil
		default:
			return QualifiedName{}, fmt.Errorf("%w: label %q is ambiguous among %d producers", ErrAmbiguousLabel, l.Name, len(candidates))
		}
	}
	var matches []QualifiedName
	for _, c := range candidates {
		if l.Qualifier.Matches(c.Qualifier) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 0:
		return QualifiedName{}, fmt.Errorf("%w: no producer for label %q matching %s", ErrUnresolvedLabel, l.Name, l.Qualifier.String())
	case 1:
		return matches[0], nil
	default:
		return QualifiedName{}, fmt.Errorf("%w: label %q matching %s is ambiguous among %d producers", ErrAmbiguousLabel, l.Name, l.Qualifier.String(), len(matches))
	}
}
