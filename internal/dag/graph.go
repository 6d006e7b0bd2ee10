// Package dag provides a small string-keyed directed graph used by the
// node catalog to validate producer/consumer wiring at build time:
// cycle detection and dispatch-layer computation via Kahn's algorithm,
// seeded in insertion order for determinism.
package dag

import (
	"fmt"
	"strings"
)

// Graph is a directed graph over string node ids. An edge from -> to
// means "from consumes something to produces" (from depends on to).
type Graph struct {
	nodes   map[string]bool
	edges   map[string]map[string]bool
	reverse map[string]map[string]bool
	ordered []string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]bool),
		edges:   make(map[string]map[string]bool),
		reverse: make(map[string]map[string]bool),
	}
}

// AddNode adds a node. Duplicate adds are no-ops.
func (g *Graph) AddNode(id string) {
	if g.nodes[id] {
		return
	}
	g.nodes[id] = true
	g.edges[id] = make(map[string]bool)
	g.reverse[id] = make(map[string]bool)
	g.ordered = append(g.ordered, id)
}

// AddEdge records that "from" depends on "to". Both nodes are created if
// not already present.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.edges[from][to] = true
	g.reverse[to][from] = true
}

// HasNode reports whether id has been added to the graph.
func (g *Graph) HasNode(id string) bool { return g.nodes[id] }

// DependenciesOf returns the direct dependencies of id.
func (g *Graph) DependenciesOf(id string) []string {
	out := make([]string, 0, len(g.edges[id]))
	for dep := range g.edges[id] {
		out = append(out, dep)
	}
	return out
}

// DependentsOf returns the nodes that directly depend on id.
func (g *Graph) DependentsOf(id string) []string {
	out := make([]string, 0, len(g.reverse[id]))
	for dep := range g.reverse[id] {
		out = append(out, dep)
	}
	return out
}

// TopologicalSort orders nodes so every dependency precedes its
// dependents, using Kahn's algorithm seeded in insertion order for
// determinism. Returns an error naming a cycle if one exists.
func (g *Graph) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.edges[id])
	}

	queue := make([]string, 0)
	for _, id := range g.ordered {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	sorted := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		sorted = append(sorted, node)
		for dependent := range g.reverse[node] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		return nil, fmt.Errorf("cycle detected: %s", strings.Join(g.detectCycle(), " -> "))
	}
	return sorted, nil
}

// Layers groups nodes by dispatch depth: layer 0 has no dependencies,
// layer N's nodes depend only on nodes in layers 0..N-1. Nodes within a
// layer have no ordering constraint between them, which is exactly the
// set the scheduler may dispatch concurrently.
func (g *Graph) Layers() ([][]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = len(g.edges[id])
	}

	current := make([]string, 0)
	for _, id := range g.ordered {
		if inDegree[id] == 0 {
			current = append(current, id)
		}
	}

	var layers [][]string
	visited := 0
	for len(current) > 0 {
		layers = append(layers, current)
		visited += len(current)

		next := make([]string, 0)
		for _, node := range current {
			for dependent := range g.reverse[node] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
	}

	if visited != len(g.nodes) {
		return nil, fmt.Errorf("cycle detected: %s", strings.Join(g.detectCycle(), " -> "))
	}
	return layers, nil
}

// detectCycle does a DFS from each unvisited node to find one concrete
// cycle to report, favoring a useful error message over minimality.
func (g *Graph) detectCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.nodes))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for dep := range g.edges[id] {
			switch color[dep] {
			case white:
				if visit(dep) {
					return true
				}
			case gray:
				// Found the back-edge; extract the cycle portion of path.
				for i, p := range path {
					if p == dep {
						cycle = append(append([]string{}, path[i:]...), dep)
						return true
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range g.ordered {
		if color[id] == white {
			if visit(id) {
				return cycle
			}
		}
	}
	return []string{"<unknown>"}
}
