package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/m1gwings/treedrawer/tree"

	"github.com/phlex-run/phlex"
)

// GraphDebugExtension logs the catalog's producer/consumer graph when a
// node dispatch fails: the static graph (producer -> consumer, derived
// from every Node's resolved Inputs/PredicateQN) annotated with per-node
// dispatch outcome, keyed by full name. When a node panics it logs the
// recovered value and stack trace, without the graph.
//
// Usage:
//
//	handler := extensions.NewHumanHandler(os.Stdout, slog.LevelError)
//	ext := extensions.NewGraphDebugExtension(catalog, handler)
//
//	handler := slog.NewJSONHandler(os.Stdout, nil)
//	ext := extensions.NewGraphDebugExtension(catalog, handler)
//
//	ext := extensions.NewGraphDebugExtension(catalog, extensions.NewSilentHandler())
type GraphDebugExtension struct {
	phlex.BaseExtension
	catalog *phlex.Catalog

	resolved map[string]bool
	failed   map[string]error
	logger   *slog.Logger
}

// NewGraphDebugExtension returns a GraphDebugExtension tracking catalog
// and logging through logHandler.
func NewGraphDebugExtension(catalog *phlex.Catalog, logHandler slog.Handler) *GraphDebugExtension {
	return &GraphDebugExtension{
		BaseExtension: phlex.NewBaseExtension("graph-debug"),
		catalog:       catalog,
		resolved:      make(map[string]bool),
		failed:        make(map[string]error),
		logger:        slog.New(logHandler),
	}
}

// Wrap tracks each node's dispatch outcome for later rendering.
func (e *GraphDebugExtension) Wrap(ctx context.Context, next func() error, op *phlex.Operation) error {
	err := next()
	name := op.Node.FullName.String()
	if err == nil {
		e.resolved[name] = true
	} else {
		e.failed[name] = err
	}
	return err
}

// OnError logs the catalog's dependency graph when a node dispatch fails.
func (e *GraphDebugExtension) OnError(err error, op *phlex.Operation) {
	name := op.Node.FullName.String()
	graphOutput := e.formatDependencyGraph(name, err)

	e.logger.Error("Dependency Resolution Error",
		"node", name,
		"error", err.Error(),
		"operation", string(op.Kind),
		"dependency_graph", graphOutput,
	)
}

// OnPanic logs the recovered value and stack trace of a node panic.
func (e *GraphDebugExtension) OnPanic(op *phlex.Operation, recovered any, stack []byte) {
	e.logger.Error("Node Panic",
		"node", op.Node.FullName.String(),
		"level", op.Store.Level.String(),
		"panic", fmt.Sprintf("%v", recovered),
		"stack_trace", string(stack),
	)
}

// catalogGraph builds a producer -> consumers adjacency from every
// node's resolved Inputs and PredicateQN (the same edges Catalog.Freeze
// feeds into its dag.Graph, reversed here to point from producer to
// consumer for rendering).
func (e *GraphDebugExtension) catalogGraph() map[string][]string {
	graph := make(map[string][]string)
	for _, n := range e.catalog.Nodes() {
		name := n.FullName.String()
		if _, ok := graph[name]; !ok {
			graph[name] = nil
		}
		for _, in := range n.Inputs {
			graph[in.String()] = append(graph[in.String()], name)
		}
		for _, pr := range n.PredicateQN {
			graph[pr.String()] = append(graph[pr.String()], name)
		}
	}
	return graph
}

// tryFormatHorizontalTree attempts to render the catalog graph as a
// horizontal tree using treedrawer.
func (e *GraphDebugExtension) tryFormatHorizontalTree(graph map[string][]string, failedNode string) string {
	parents := make(map[string][]string)
	allNodes := make(map[string]bool)

	for parent, children := range graph {
		allNodes[parent] = true
		for _, child := range children {
			allNodes[child] = true
			parents[child] = append(parents[child], parent)
		}
	}

	var roots []string
	for node := range allNodes {
		if len(parents[node]) == 0 {
			roots = append(roots, node)
		}
	}
	sort.Strings(roots)

	if len(roots) == 0 {
		return ""
	}

	var rootNode *tree.Tree
	if len(roots) == 1 {
		rootNode = e.buildTree(roots[0], graph, failedNode, make(map[string]bool))
	} else {
		rootNode = tree.NewTree(tree.NodeString("Dependencies"))
		for _, root := range roots {
			if childTree := e.buildTree(root, graph, failedNode, make(map[string]bool)); childTree != nil {
				e.addTreeAsChild(rootNode, childTree)
			}
		}
	}
	if rootNode == nil {
		return ""
	}
	return rootNode.String()
}

// buildTree recursively builds a tree structure from the catalog graph.
func (e *GraphDebugExtension) buildTree(node string, graph map[string][]string, failedNode string, visited map[string]bool) *tree.Tree {
	if visited[node] {
		return nil
	}
	visited[node] = true

	label := node
	if node == failedNode {
		label += " ❌"
	} else if e.resolved[node] {
		label += " ✓"
	}

	t := tree.NewTree(tree.NodeString(label))

	if children, ok := graph[node]; ok {
		sorted := make([]string, len(children))
		copy(sorted, children)
		sort.Strings(sorted)

		for _, child := range sorted {
			if childTree := e.buildTree(child, graph, failedNode, visited); childTree != nil {
				e.addTreeAsChild(t, childTree)
			}
		}
	}
	return t
}

func (e *GraphDebugExtension) addTreeAsChild(parent *tree.Tree, child *tree.Tree) {
	newChild := parent.AddChild(child.Val())
	for _, grandchild := range child.Children() {
		e.addTreeAsChild(newChild, grandchild)
	}
}

func (e *GraphDebugExtension) formatDependencyGraph(failedNode string, failedErr error) string {
	var sb strings.Builder
	graph := e.catalogGraph()

	if len(graph) == 0 {
		sb.WriteString("\n(empty - no nodes registered)")
		return sb.String()
	}

	if horizontal := e.tryFormatHorizontalTree(graph, failedNode); horizontal != "" {
		sb.WriteString("\n")
		sb.WriteString(horizontal)
		sb.WriteString("\n")
	}

	sb.WriteString("\nDetailed View:\n")

	names := make([]string, 0, len(graph))
	for name := range graph {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		children := graph[name]

		status := ""
		if e.resolved[name] {
			status = " ✓"
		} else if _, failed := e.failed[name]; failed {
			status = " ❌"
		}

		if len(children) == 0 {
			sb.WriteString(fmt.Sprintf("  %s%s (no dependents)\n", name, status))
			continue
		}

		sb.WriteString(fmt.Sprintf("  %s%s\n", name, status))

		sorted := make([]string, len(children))
		copy(sorted, children)
		sort.Strings(sorted)

		for i, child := range sorted {
			label := child
			if child == failedNode {
				label += " ❌ FAILED"
			} else if e.resolved[child] {
				label += " ✓"
			} else if childErr, failed := e.failed[child]; failed {
				label = fmt.Sprintf("%s ❌ (error: %v)", label, childErr)
			} else {
				label += " (pending)"
			}

			if i == len(children)-1 {
				sb.WriteString(fmt.Sprintf("    └─> %s\n", label))
			} else {
				sb.WriteString(fmt.Sprintf("    ├─> %s\n", label))
			}
		}
	}

	if failedErr != nil {
		sb.WriteString("\nError Details:\n")
		sb.WriteString(fmt.Sprintf("  Node: %s\n", failedNode))
		sb.WriteString(fmt.Sprintf("  Error: %v\n", failedErr))
	}

	return sb.String()
}

// SilentHandler is a slog.Handler that discards all log output. Useful
// for testing when log output would just be noise.
type SilentHandler struct{}

// NewSilentHandler returns a handler that discards every record.
func NewSilentHandler() *SilentHandler { return &SilentHandler{} }

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool   { return false }
func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error { return nil }
func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler             { return h }
func (h *SilentHandler) WithGroup(name string) slog.Handler                  { return h }

// HumanHandler is a slog.Handler that formats logs for human
// readability, with special-cased framing for the dependency-graph and
// panic records this extension emits.
type HumanHandler struct {
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler returns a handler writing to writer at level and above.
func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{writer: writer, level: level}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool { return level >= h.level }

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	switch record.Message {
	case "Dependency Resolution Error":
		return h.handleDependencyError(record)
	case "Node Panic":
		return h.handleNodePanic(record)
	}

	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleDependencyError(record slog.Record) error {
	var node, errorMsg, operation, dependencyGraph string

	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "node":
			node = a.Value.String()
		case "error":
			errorMsg = a.Value.String()
		case "operation":
			operation = a.Value.String()
		case "dependency_graph":
			dependencyGraph = a.Value.String()
		}
		return true
	})

	writes := []func() error{
		func() error { _, err := fmt.Fprintln(h.writer); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer, "[GraphDebug] Dependency Resolution Error"); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nFailed Node: %s\n", node); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Error: %s\n", errorMsg); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "Operation: %s\n", operation); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nDependency Graph:%s", dependencyGraph); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer); return err },
	}
	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (h *HumanHandler) handleNodePanic(record slog.Record) error {
	var panicMsg, stackTrace, level string
	var hasLevel bool

	record.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "panic":
			panicMsg = a.Value.String()
		case "stack_trace":
			stackTrace = a.Value.String()
		case "level":
			level = a.Value.String()
			hasLevel = true
		}
		return true
	})

	writes := []func() error{
		func() error { _, err := fmt.Fprintln(h.writer); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer, "[GraphDebug] Node Panic"); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintf(h.writer, "\nPanic: %s\n", panicMsg); return err },
	}
	for _, write := range writes {
		if err := write(); err != nil {
			return err
		}
	}

	if hasLevel {
		if _, err := fmt.Fprintf(h.writer, "Level: %s\n", level); err != nil {
			return err
		}
	}

	finalWrites := []func() error{
		func() error { _, err := fmt.Fprintf(h.writer, "\nStack Trace:\n%s\n", stackTrace); return err },
		func() error { _, err := fmt.Fprintln(h.writer, strings.Repeat("=", 70)); return err },
		func() error { _, err := fmt.Fprintln(h.writer); return err },
	}
	for _, write := range finalWrites {
		if err := write(); err != nil {
			return err
		}
	}
	return nil
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }
func (h *HumanHandler) WithGroup(name string) slog.Handler       { return h }
