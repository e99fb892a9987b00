package topo

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSortLinearChain(t *testing.T) {
	// doc -> user -> org: parents must come out before children.
	result := Sort([]Edge{
		{Child: "doc", Parent: "user"},
		{Child: "user", Parent: "org"},
	})

	if len(result.Cyclic) != 0 {
		t.Fatalf("expected no cyclic nodes, got %v", result.Cyclic)
	}
	want := []string{"org", "user", "doc"}
	if diff := cmp.Diff(want, result.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestSortDiamond(t *testing.T) {
	// b and c both depend on a; d depends on both.
	result := Sort([]Edge{
		{Child: "d", Parent: "b"},
		{Child: "d", Parent: "c"},
		{Child: "b", Parent: "a"},
		{Child: "c", Parent: "a"},
	})

	if len(result.Cyclic) != 0 {
		t.Fatalf("expected no cyclic nodes, got %v", result.Cyclic)
	}

	pos := make(map[string]int)
	for i, n := range result.Order {
		pos[n] = i
	}
	for _, pair := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "d"}, {"c", "d"}} {
		if pos[pair[0]] > pos[pair[1]] {
			t.Errorf("%s should come before %s in %v", pair[0], pair[1], result.Order)
		}
	}
}

func TestSortTwoNodeCycle(t *testing.T) {
	result := Sort([]Edge{
		{Child: "a", Parent: "b"},
		{Child: "b", Parent: "a"},
	})

	if len(result.Order) != 0 {
		t.Errorf("expected empty acyclic order, got %v", result.Order)
	}
	if len(result.Cyclic) != 2 {
		t.Fatalf("expected both nodes cyclic, got %v", result.Cyclic)
	}
	seen := map[string]bool{}
	for _, n := range result.Cyclic {
		seen[n] = true
	}
	if !seen["a"] || !seen["b"] {
		t.Errorf("cyclic nodes should be a and b, got %v", result.Cyclic)
	}
}

func TestSortCycleWithDownstreamNode(t *testing.T) {
	// a <-> b cycle, plus c depending on a: c stays in the acyclic
	// order, after the cycle participants are set aside.
	result := Sort([]Edge{
		{Child: "a", Parent: "b"},
		{Child: "b", Parent: "a"},
		{Child: "c", Parent: "a"},
	})

	if diff := cmp.Diff([]string{"c"}, result.Order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	if len(result.Cyclic) != 2 {
		t.Errorf("expected a and b cyclic, got %v", result.Cyclic)
	}
}

func TestSortSelfLoop(t *testing.T) {
	result := Sort([]Edge{
		{Child: "a", Parent: "a"},
	})

	if len(result.Order) != 0 {
		t.Errorf("expected empty acyclic order, got %v", result.Order)
	}
	if diff := cmp.Diff([]string{"a"}, result.Cyclic); diff != "" {
		t.Errorf("cyclic mismatch (-want +got):\n%s", diff)
	}
}

func TestSortDeterministic(t *testing.T) {
	edges := []Edge{
		{Child: "user", Parent: "org"},
		{Child: "doc", Parent: "user"},
		{Child: "doc", Parent: "org"},
		{Child: "tag", Parent: "doc"},
	}

	first := Sort(edges)
	for i := 0; i < 10; i++ {
		again := Sort(edges)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("Sort is not deterministic (-first +again):\n%s", diff)
		}
	}
}

func TestProcessingOrderReversesLinearization(t *testing.T) {
	// Sort yields parents-before-children; the processing order is that
	// linearization reversed, so the walk visits children first.
	result := Sort([]Edge{
		{Child: "doc", Parent: "user"},
		{Child: "user", Parent: "org"},
	})

	order := ProcessingOrder([]string{"org", "user", "doc"}, result)
	if diff := cmp.Diff([]string{"doc", "user", "org"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessingOrderReversesCyclic(t *testing.T) {
	result := Result{
		Order:  []string{"x", "y"},
		Cyclic: []string{"a", "b"},
	}

	order := ProcessingOrder([]string{"a", "b", "x", "y"}, result)
	if diff := cmp.Diff([]string{"b", "a", "y", "x"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessingOrder(t *testing.T) {
	result := Sort([]Edge{
		{Child: "a", Parent: "b"},
		{Child: "b", Parent: "a"},
		{Child: "c", Parent: "a"},
	})

	// lonely has no edges at all: it goes first. Cycle members next, so
	// their sets are populated before the acyclic pass reads them.
	order := ProcessingOrder([]string{"c", "lonely", "a", "b"}, result)

	if order[0] != "lonely" {
		t.Errorf("isolated node should come first, got %v", order)
	}
	pos := make(map[string]int)
	for i, n := range order {
		pos[n] = i
	}
	if pos["c"] < pos["a"] || pos["c"] < pos["b"] {
		t.Errorf("cycle members should precede dependent acyclic nodes, got %v", order)
	}
	if len(order) != 4 {
		t.Errorf("every table should appear exactly once, got %v", order)
	}
}
