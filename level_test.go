package phlex

import "testing"

import "github.com/stretchr/testify/require"

func TestLevelID_ChildIncrementsDepth(t *testing.T) {
	root := RootLevel("job")
	require.Equal(t, 0, root.Depth())

	run := root.Child("run", 0)
	require.Equal(t, 1, run.Depth())
	require.Equal(t, "run", run.LevelName())
	require.Equal(t, 0, run.Number())
}

func TestLevelID_HashIsStableAcrossEqualConstruction(t *testing.T) {
	a := RootLevel("job").Child("run", 3).Child("event", 1)
	b := RootLevel("job").Child("run", 3).Child("event", 1)
	require.Equal(t, a.Hash(), b.Hash())
	require.True(t, a.Equal(b))
}

func TestLevelID_DistinctSiblingsHashDifferently(t *testing.T) {
	root := RootLevel("job")
	a := root.Child("run", 0)
	b := root.Child("run", 1)
	require.NotEqual(t, a.Hash(), b.Hash())
	require.False(t, a.Equal(b))
}

func TestLevelID_ParentWalksToNamedAncestor(t *testing.T) {
	root := RootLevel("job")
	run := root.Child("run", 0)
	event := run.Child("event", 2)

	found, ok := event.Parent("run")
	require.True(t, ok)
	require.True(t, found.Equal(run))

	found, ok = event.Parent("job")
	require.True(t, ok)
	require.True(t, found.Equal(root))

	_, ok = event.Parent("segment")
	require.False(t, ok)
}

func TestLevelID_IsAncestorOf(t *testing.T) {
	root := RootLevel("job")
	run := root.Child("run", 0)
	event := run.Child("event", 0)

	require.True(t, root.IsAncestorOf(event))
	require.True(t, run.IsAncestorOf(event))
	require.True(t, event.IsAncestorOf(event))

	other := root.Child("run", 1)
	require.False(t, other.IsAncestorOf(event))
	require.False(t, event.IsAncestorOf(run))
}

func TestLevelID_String(t *testing.T) {
	l := RootLevel("job").Child("run", 3).Child("event", 1)
	require.Equal(t, "job:0/run:3/event:1", l.String())
}
