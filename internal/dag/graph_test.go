package dag

import "testing"

func TestTopologicalSortOrdersDependenciesFirst(t *testing.T) {
	g := New()
	g.AddEdge("consume-b", "produce-a")
	g.AddEdge("consume-c", "consume-b")

	sorted, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pos := make(map[string]int, len(sorted))
	for i, id := range sorted {
		pos[id] = i
	}
	if pos["produce-a"] > pos["consume-b"] {
		t.Fatalf("produce-a should precede consume-b: %v", sorted)
	}
	if pos["consume-b"] > pos["consume-c"] {
		t.Fatalf("consume-b should precede consume-c: %v", sorted)
	}
}

func TestTopologicalSortDetectsCycle(t *testing.T) {
	g := New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	if _, err := g.TopologicalSort(); err == nil {
		t.Fatal("expected a cycle error")
	}
}

func TestLayersGroupsIndependentNodes(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	g.AddEdge("c", "a")
	g.AddEdge("c", "b")

	layers, err := g.Layers()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(layers) != 2 {
		t.Fatalf("expected 2 layers, got %d: %v", len(layers), layers)
	}
	if len(layers[0]) != 2 {
		t.Fatalf("expected layer 0 to hold both independent nodes, got %v", layers[0])
	}
	if len(layers[1]) != 1 || layers[1][0] != "c" {
		t.Fatalf("expected layer 1 to hold c, got %v", layers[1])
	}
}

func TestDependenciesAndDependentsOf(t *testing.T) {
	g := New()
	g.AddEdge("consumer", "producer")

	if deps := g.DependenciesOf("consumer"); len(deps) != 1 || deps[0] != "producer" {
		t.Fatalf("unexpected dependencies: %v", deps)
	}
	if dependents := g.DependentsOf("producer"); len(dependents) != 1 || dependents[0] != "consumer" {
		t.Fatalf("unexpected dependents: %v", dependents)
	}
}
