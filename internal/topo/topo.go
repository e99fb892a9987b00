// Package topo partitions a foreign-key dependency graph into an acyclic
// prefix plus a cyclic remainder, the way the collector's Phase 2b needs
// to walk tables in an order where, whenever possible, a table's FK
// targets have already been resolved.
package topo

import "sort"

// Edge is a (child, parent) dependency: child references parent, so
// parent should be visited first whenever the graph is acyclic at that
// point.
type Edge struct {
	Child  string
	Parent string
}

// Result is the output of Sort: Order holds every node reachable from
// the edge list in an acyclic linearization (parents before children)
// with cycle members removed, and Cyclic holds the nodes that
// participate in at least one cycle, in DFS discovery order.
type Result struct {
	Order  []string
	Cyclic []string
}

// Sort runs a depth-first topological sort over edges. Unlike Kahn's
// algorithm (which the rest of this codebase's ancestry uses for
// schema-object ordering), this walk explicitly separates cyclic nodes
// from the acyclic linearization instead of breaking cycles arbitrarily
// — the collector needs to know which tables are in a cycle so it can
// process them first and let need_transfer_pks accumulate across both
// groups.
func Sort(edges []Edge) Result {
	parentsOf := make(map[string][]string)
	seen := make(map[string]bool)
	var nodeOrder []string

	addNode := func(n string) {
		if !seen[n] {
			seen[n] = true
			nodeOrder = append(nodeOrder, n)
		}
	}

	for _, e := range edges {
		addNode(e.Child)
		addNode(e.Parent)
		parentsOf[e.Child] = append(parentsOf[e.Child], e.Parent)
	}
	for child, parents := range parentsOf {
		sort.Strings(parents)
		parentsOf[child] = parents
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	status := make(map[string]int, len(nodeOrder))
	inCycle := make(map[string]bool)
	var cyclic []string
	var order []string
	var path []string

	markCycle := func(n string) {
		// Every node on the current DFS path from n to the top is on the
		// cycle the back edge just closed.
		start := len(path) - 1
		for start >= 0 && path[start] != n {
			start--
		}
		if start < 0 {
			start = 0
		}
		for _, m := range path[start:] {
			if !inCycle[m] {
				inCycle[m] = true
				cyclic = append(cyclic, m)
			}
		}
	}

	var visit func(n string)
	visit = func(n string) {
		switch status[n] {
		case done:
			return
		case visiting:
			markCycle(n)
			return
		}

		status[n] = visiting
		path = append(path, n)
		for _, p := range parentsOf[n] {
			visit(p)
		}
		path = path[:len(path)-1]
		status[n] = done
		order = append(order, n)
	}

	for _, n := range nodeOrder {
		visit(n)
	}

	// A node on a cycle may have been appended to order before the back
	// edge that revealed the cycle was found (its own DFS frame
	// completed normally from the caller's point of view even though one
	// of its ancestors looped back into it). Move every such node out of
	// order and into cyclic so the two sets stay disjoint, preserving
	// each list's relative ordering.
	var acyclicOrder []string
	for _, n := range order {
		if !inCycle[n] {
			acyclicOrder = append(acyclicOrder, n)
		}
	}

	return Result{Order: acyclicOrder, Cyclic: cyclic}
}

// ProcessingOrder assembles the final table-visiting order for the
// closure walk: nodes never mentioned by any edge (no FK in or out)
// first, since they have no ordering constraint at all; then the
// cyclic nodes and the acyclic linearization, each reversed, so cycle
// members are visited before the acyclic group and, within it, the
// walk proceeds children before parents.
func ProcessingOrder(allNodes []string, result Result) []string {
	mentioned := make(map[string]bool, len(result.Order)+len(result.Cyclic))
	for _, n := range result.Order {
		mentioned[n] = true
	}
	for _, n := range result.Cyclic {
		mentioned[n] = true
	}

	var isolated []string
	for _, n := range allNodes {
		if !mentioned[n] {
			isolated = append(isolated, n)
		}
	}
	sort.Strings(isolated)

	out := make([]string, 0, len(isolated)+len(result.Cyclic)+len(result.Order))
	out = append(out, isolated...)
	for i := len(result.Cyclic) - 1; i >= 0; i-- {
		out = append(out, result.Cyclic[i])
	}
	for i := len(result.Order) - 1; i >= 0; i-- {
		out = append(out, result.Order[i])
	}
	return out
}
