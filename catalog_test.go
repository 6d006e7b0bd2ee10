package phlex

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// Registering the same node twice yields exactly one catalog entry and
// one duplicate error.
func TestCatalog_DuplicateRegistrationIsOneEntryOneError(t *testing.T) {
	catalog := NewCatalog()
	proxy := NewProxy(catalog, "demo")

	Transform1[int, int](proxy, "double", func(x int) (int, error) { return x * 2, nil }).
		InputFamily(Label("x")).OutputProducts("y")
	Transform1[int, int](proxy, "double", func(x int) (int, error) { return x * 3, nil }).
		InputFamily(Label("x")).OutputProducts("y")

	errs := catalog.Errors()
	require.Len(t, errs, 1)
	require.True(t, errors.Is(errs[0], ErrDuplicateName))

	nodes := catalog.NodesByKind(KindTransform)
	require.Len(t, nodes, 1)
}

func TestCatalog_ArityMismatchIsReported(t *testing.T) {
	catalog := NewCatalog()
	proxy := NewProxy(catalog, "demo")

	Transform2[int, int, int](proxy, "sum", func(a, b int) (int, error) { return a + b, nil }).
		InputFamily(Label("x")).OutputProducts("y")

	err := catalog.Freeze()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrArityMismatch))
}

func TestCatalog_UnresolvedLabelIsReported(t *testing.T) {
	catalog := NewCatalog()
	proxy := NewProxy(catalog, "demo")

	Transform1[int, int](proxy, "double", func(x int) (int, error) { return x * 2, nil }).
		InputFamily(QualifiedLabel("missing", PluginAndAlgorithm("demo", "nope"))).OutputProducts("y")

	err := catalog.Freeze()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnresolvedLabel))
}

func TestCatalog_CycleIsDetected(t *testing.T) {
	catalog := NewCatalog()
	proxy := NewProxy(catalog, "demo")

	Transform1[int, int](proxy, "a", func(x int) (int, error) { return x, nil }).
		InputFamily(Label("b_out")).OutputProducts("a_out")
	Transform1[int, int](proxy, "b", func(x int) (int, error) { return x, nil }).
		InputFamily(Label("a_out")).OutputProducts("b_out")

	err := catalog.Freeze()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCycle))
}

func TestCatalog_FreezeBuildsLayersAndRejectsDoubleFreeze(t *testing.T) {
	catalog := NewCatalog()
	proxy := NewProxy(catalog, "demo")

	Transform1[int, int](proxy, "double", func(x int) (int, error) { return x * 2, nil }).
		InputFamily(Label("x")).OutputProducts("y")
	Transform1[int, int](proxy, "triple", func(x int) (int, error) { return x * 3, nil }).
		InputFamily(Label("y")).OutputProducts("z")

	require.NoError(t, catalog.Freeze())
	require.True(t, errors.Is(catalog.Freeze(), ErrCatalogFrozen))

	layers, err := catalog.Layers()
	require.NoError(t, err)
	require.Len(t, layers, 2)
	require.Contains(t, layers[0], "demo::double/double")
	require.Contains(t, layers[1], "demo::triple/triple")
}

func TestCatalog_LayersBeforeFreezeErrors(t *testing.T) {
	catalog := NewCatalog()
	_, err := catalog.Layers()
	require.True(t, errors.Is(err, ErrCatalogNotFrozen))
}

func TestCatalog_LookupFullName(t *testing.T) {
	catalog := NewCatalog()
	proxy := NewProxy(catalog, "demo")
	Transform1[int, int](proxy, "double", func(x int) (int, error) { return x * 2, nil }).
		InputFamily(Label("x")).OutputProducts("y")
	require.NoError(t, catalog.Freeze())

	node, ok := catalog.LookupFullName("demo::double/double")
	require.True(t, ok)
	require.Equal(t, "double", node.FullName.Name)

	_, ok = catalog.LookupFullName("demo::missing/missing")
	require.False(t, ok)
}

func TestCatalog_PartitionOnNonFoldNodeIsKindMismatch(t *testing.T) {
	catalog := NewCatalog()
	proxy := NewProxy(catalog, "demo")

	Transform1[int, int](proxy, "double", func(x int) (int, error) { return x * 2, nil }).
		InputFamily(Label("x")).OutputProducts("y").
		Partition("run")

	errs := catalog.Errors()
	require.Len(t, errs, 1)
}
