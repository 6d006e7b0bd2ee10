package phlex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlgorithmName_Matches(t *testing.T) {
	concrete := PluginAndAlgorithm("demo", "double")

	require.True(t, UnspecifiedAlgorithm().Matches(concrete))
	require.True(t, AlgorithmOnly("double").Matches(concrete))
	require.False(t, AlgorithmOnly("triple").Matches(concrete))
	require.True(t, PluginAndAlgorithm("demo", "double").Matches(concrete))
	require.False(t, PluginAndAlgorithm("other", "double").Matches(concrete))
}

func TestQualifiedName_Less(t *testing.T) {
	a := QualifiedName{Qualifier: PluginAndAlgorithm("demo", "a"), Name: "x"}
	b := QualifiedName{Qualifier: PluginAndAlgorithm("demo", "a"), Name: "y"}
	c := QualifiedName{Qualifier: PluginAndAlgorithm("demo", "b"), Name: "a"}

	require.True(t, a.Less(b))
	require.False(t, b.Less(a))
	require.True(t, a.Less(c))
}

func TestSpecifiedLabel_ResolveUnqualified(t *testing.T) {
	double := PluginAndAlgorithm("demo", "double")
	producers := map[string][]QualifiedName{
		"y": {{Qualifier: double, Name: "double"}},
	}

	qn, err := Label("y").resolve(producers)
	require.NoError(t, err)
	require.Equal(t, double, qn.Qualifier)
}

func TestSpecifiedLabel_ResolveUnresolved(t *testing.T) {
	_, err := Label("missing").resolve(map[string][]QualifiedName{})
	require.True(t, errors.Is(err, ErrUnresolvedLabel))
}

func TestSpecifiedLabel_ResolveAmbiguous(t *testing.T) {
	producers := map[string][]QualifiedName{
		"y": {
			{Qualifier: PluginAndAlgorithm("demo", "a"), Name: "a"},
			{Qualifier: PluginAndAlgorithm("demo", "b"), Name: "b"},
		},
	}

	_, err := Label("y").resolve(producers)
	require.True(t, errors.Is(err, ErrAmbiguousLabel))
}

func TestSpecifiedLabel_ResolveQualifiedDisambiguates(t *testing.T) {
	a := PluginAndAlgorithm("demo", "a")
	b := PluginAndAlgorithm("demo", "b")
	producers := map[string][]QualifiedName{
		"y": {
			{Qualifier: a, Name: "a"},
			{Qualifier: b, Name: "b"},
		},
	}

	qn, err := QualifiedLabel("y", b).resolve(producers)
	require.NoError(t, err)
	require.Equal(t, b, qn.Qualifier)
}

func TestSpecifiedLabel_ResolveQualifiedNoMatch(t *testing.T) {
	producers := map[string][]QualifiedName{
		"y": {{Qualifier: PluginAndAlgorithm("demo", "a"), Name: "a"}},
	}

	_, err := QualifiedLabel("y", PluginAndAlgorithm("demo", "nope")).resolve(producers)
	require.True(t, errors.Is(err, ErrUnresolvedLabel))
}
