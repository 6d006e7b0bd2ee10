package extensions

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/phlex-run/phlex"
)

func buildFailingCatalog(t *testing.T) *phlex.Catalog {
	t.Helper()
	catalog := phlex.NewCatalog()
	proxy := phlex.NewProxy(catalog, "demo")

	phlex.Transform1[int, int](proxy, "double", func(x int) (int, error) {
		return x * 2, nil
	}).InputFamily(phlex.Label("x")).OutputProducts("y")

	phlex.Transform1[int, int](proxy, "boom", func(y int) (int, error) {
		return 0, errors.New("boom: always fails")
	}).InputFamily(phlex.Label("y")).OutputProducts("z")

	require.NoError(t, catalog.Freeze())
	return catalog
}

func TestGraphDebugExtension_OnError(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(&buf, slog.LevelError)
	catalog := buildFailingCatalog(t)
	ext := NewGraphDebugExtension(catalog, handler)

	boom, ok := catalog.LookupFullName("demo::boom/boom")
	require.True(t, ok, "boom node should be registered under its full name")

	op := &phlex.Operation{Kind: phlex.OpDispatch, Node: boom, Store: phlex.Base("job", "test")}
	err := errors.New("type assertion failed: expected int, got string")

	ext.OnError(err, op)

	output := buf.String()
	require.Contains(t, output, strings.Repeat("=", 70))
	require.Contains(t, output, "Dependency Resolution Error")
	require.Contains(t, output, boom.FullName.String())
	require.Contains(t, output, err.Error())
}

func TestGraphDebugExtension_WrapTracksOutcome(t *testing.T) {
	catalog := buildFailingCatalog(t)
	ext := NewGraphDebugExtension(catalog, NewSilentHandler())

	double, ok := catalog.LookupFullName("demo::double/double")
	require.True(t, ok)

	op := &phlex.Operation{Kind: phlex.OpDispatch, Node: double, Store: phlex.Base("job", "test")}

	err := ext.Wrap(context.Background(), func() error { return nil }, op)
	require.NoError(t, err)
	require.True(t, ext.resolved[double.FullName.String()])

	failing := errors.New("nope")
	boom, ok := catalog.LookupFullName("demo::boom/boom")
	require.True(t, ok)
	opFail := &phlex.Operation{Kind: phlex.OpDispatch, Node: boom, Store: phlex.Base("job", "test")}

	err = ext.Wrap(context.Background(), func() error { return failing }, opFail)
	require.ErrorIs(t, err, failing)
	require.Equal(t, failing, ext.failed[boom.FullName.String()])
}

func TestGraphDebugExtension_OnPanic(t *testing.T) {
	var buf bytes.Buffer
	handler := NewHumanHandler(&buf, slog.LevelError)
	catalog := buildFailingCatalog(t)
	ext := NewGraphDebugExtension(catalog, handler)

	boom, ok := catalog.LookupFullName("demo::boom/boom")
	require.True(t, ok)
	op := &phlex.Operation{Kind: phlex.OpDispatch, Node: boom, Store: phlex.Base("job", "test")}

	ext.OnPanic(op, "index out of range", []byte("goroutine 1 [running]:\nmain.boom()\n"))

	output := buf.String()
	require.Contains(t, output, "Node Panic")
	require.Contains(t, output, "index out of range")
	require.Contains(t, output, "goroutine 1")
}

func TestSilentHandler_DiscardsEverything(t *testing.T) {
	h := NewSilentHandler()
	require.False(t, h.Enabled(context.Background(), slog.LevelError))
	require.NoError(t, h.Handle(context.Background(), slog.Record{}))
	require.Same(t, h, h.WithAttrs(nil))
	require.Same(t, h, h.WithGroup("g"))
}

func TestHumanHandler_DefaultFormatting(t *testing.T) {
	var buf bytes.Buffer
	h := NewHumanHandler(&buf, slog.LevelInfo)
	logger := slog.New(h)

	logger.Info("plain message", "key", "value")

	output := buf.String()
	require.Contains(t, output, "plain message")
	require.Contains(t, output, "key: value")
}

func TestHumanHandler_LevelFiltering(t *testing.T) {
	h := NewHumanHandler(&bytes.Buffer{}, slog.LevelError)
	require.False(t, h.Enabled(context.Background(), slog.LevelDebug))
	require.True(t, h.Enabled(context.Background(), slog.LevelError))
}
