package flowgraph

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// Compile validates the graph and creates an executable CompiledGraph.
// Returns an error if validation fails. Multiple errors are joined together.
//
// Validation checks (in order):
//  1. Entry point must be set
//  2. Entry point must reference an existing node
//  3. All edge sources must reference existing nodes
//  4. All edge and edge-table targets must reference existing nodes or END
//  5. Interrupt points must reference existing nodes
//  6. Subgraphs must not declare interrupt points of their own
//  7. The entry must have a path to END (a node without edges is terminal)
//
// Unreachable nodes (not reachable from entry) are logged as warnings
// but do not cause compilation to fail.
func (g *Graph[S, U]) Compile() (*CompiledGraph[S, U], error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error

	if g.entryPoint == "" {
		errs = append(errs, ErrNoEntryPoint)
	} else if _, exists := g.nodes[g.entryPoint]; !exists {
		errs = append(errs, fmt.Errorf("%w: %s", ErrEntryNotFound, g.entryPoint))
	}

	for from, targets := range g.edges {
		if _, exists := g.nodes[from]; !exists {
			errs = append(errs, fmt.Errorf("%w: edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, to := range targets {
			if to != END && !g.hasNode(to) {
				errs = append(errs, fmt.Errorf("%w: edge target '%s' does not exist", ErrNodeNotFound, to))
			}
		}
	}

	for from, table := range g.branches {
		if !g.hasNode(from) {
			errs = append(errs, fmt.Errorf("%w: conditional edge source '%s' does not exist", ErrNodeNotFound, from))
		}
		for _, label := range sortedLabels(table) {
			to := table[label]
			if to != END && !g.hasNode(to) {
				errs = append(errs, fmt.Errorf("%w: branch %q of '%s' targets '%s'", ErrNodeNotFound, label, from, to))
			}
		}
	}

	for id := range g.interruptAfter {
		if !g.hasNode(id) {
			errs = append(errs, fmt.Errorf("%w: interrupt point '%s' does not exist", ErrNodeNotFound, id))
		}
	}

	for id, sub := range g.subgraphs {
		if len(sub.interruptAfter) > 0 {
			errs = append(errs, fmt.Errorf("%w: %s", ErrSubgraphInterrupt, id))
		}
	}

	if g.entryPoint != "" && g.hasNode(g.entryPoint) && !g.hasPathToEnd() {
		errs = append(errs, ErrNoPathToEnd)
	}

	g.warnUnreachableNodes()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return g.buildCompiledGraph(), nil
}

func (g *Graph[S, U]) hasNode(id string) bool {
	_, exists := g.nodes[id]
	return exists
}

// hasPathToEnd checks if there's a path from entry to END.
// Edge tables are known at build time, so every branch counts as a
// concrete edge for reachability.
func (g *Graph[S, U]) hasPathToEnd() bool {
	canReachEnd := map[string]bool{END: true}

	changed := true
	for changed {
		changed = false
		for from := range g.nodes {
			if canReachEnd[from] {
				continue
			}
			targets := g.targets(from)
			if len(targets) == 0 {
				// No outgoing edges: the node is terminal.
				canReachEnd[from] = true
				changed = true
				continue
			}
			for _, to := range targets {
				if canReachEnd[to] {
					canReachEnd[from] = true
					changed = true
					break
				}
			}
		}
	}

	return canReachEnd[g.entryPoint]
}

// targets returns every possible successor of a node.
func (g *Graph[S, U]) targets(id string) []string {
	if table, ok := g.branches[id]; ok {
		out := make([]string, 0, len(table))
		for _, label := range sortedLabels(table) {
			out = append(out, table[label])
		}
		return out
	}
	return g.edges[id]
}

// warnUnreachableNodes logs warnings for nodes not reachable from entry.
func (g *Graph[S, U]) warnUnreachableNodes() {
	if g.entryPoint == "" {
		return
	}

	reachable := make(map[string]bool)
	queue := []string{g.entryPoint}
	reachable[g.entryPoint] = true

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, target := range g.targets(current) {
			if target != END && !reachable[target] {
				reachable[target] = true
				queue = append(queue, target)
			}
		}
	}

	for nodeID := range g.nodes {
		if !reachable[nodeID] {
			slog.Warn("node is unreachable from entry", "node_id", nodeID)
		}
	}
}

// buildCompiledGraph creates the immutable CompiledGraph from the builder state.
func (g *Graph[S, U]) buildCompiledGraph() *CompiledGraph[S, U] {
	nodes := make(map[string]NodeFunc[S, U], len(g.nodes))
	for id, fn := range g.nodes {
		nodes[id] = fn
	}

	edges := make(map[string][]string, len(g.edges))
	for from, targets := range g.edges {
		edges[from] = append([]string(nil), targets...)
	}

	routers := make(map[string]RouterFunc[S], len(g.routers))
	for from, router := range g.routers {
		routers[from] = router
	}

	branches := make(map[string]map[string]string, len(g.branches))
	for from, table := range g.branches {
		copied := make(map[string]string, len(table))
		for label, to := range table {
			copied[label] = to
		}
		branches[from] = copied
	}

	predecessors := make(map[string][]string)
	for from := range nodes {
		for _, to := range g.targets(from) {
			if to != END {
				predecessors[to] = append(predecessors[to], from)
			}
		}
	}
	for to := range predecessors {
		sort.Strings(predecessors[to])
	}

	interruptAfter := make(map[string]bool, len(g.interruptAfter))
	for id := range g.interruptAfter {
		interruptAfter[id] = true
	}

	return &CompiledGraph[S, U]{
		nodes:          nodes,
		edges:          edges,
		routers:        routers,
		branches:       branches,
		entryPoint:     g.entryPoint,
		predecessors:   predecessors,
		interruptAfter: interruptAfter,
	}
}

func sortedLabels(table map[string]string) []string {
	labels := make([]string, 0, len(table))
	for label := range table {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
