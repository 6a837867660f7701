package flowgraph

import "sort"

// CompiledGraph is an immutable, executable graph.
// It is created by calling Compile() on a Graph builder.
//
// CompiledGraph is thread-safe and can be used concurrently for multiple
// Run() calls. The graph structure cannot be modified after compilation.
type CompiledGraph[S State[S, U], U Update[U]] struct {
	nodes          map[string]NodeFunc[S, U]
	edges          map[string][]string
	routers        map[string]RouterFunc[S]
	branches       map[string]map[string]string
	entryPoint     string
	predecessors   map[string][]string
	interruptAfter map[string]bool
}

// EntryPoint returns the entry node ID.
func (cg *CompiledGraph[S, U]) EntryPoint() string {
	return cg.entryPoint
}

// NodeIDs returns all node identifiers in the graph, sorted.
func (cg *CompiledGraph[S, U]) NodeIDs() []string {
	ids := make([]string, 0, len(cg.nodes))
	for id := range cg.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// HasNode checks if a node exists in the graph.
func (cg *CompiledGraph[S, U]) HasNode(id string) bool {
	_, exists := cg.nodes[id]
	return exists
}

// Successors returns the targets of the node's simple (non-conditional) edges.
// Returns nil for END or unknown nodes.
func (cg *CompiledGraph[S, U]) Successors(id string) []string {
	if id == END {
		return nil
	}
	return cg.edges[id]
}

// Branches returns a copy of the node's edge table, or nil if the node
// has no conditional edges.
func (cg *CompiledGraph[S, U]) Branches(id string) map[string]string {
	table, ok := cg.branches[id]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(table))
	for label, to := range table {
		out[label] = to
	}
	return out
}

// Predecessors returns the node IDs that have edges to the given node.
func (cg *CompiledGraph[S, U]) Predecessors(id string) []string {
	return cg.predecessors[id]
}

// IsConditional returns true if the node has a conditional edge.
func (cg *CompiledGraph[S, U]) IsConditional(id string) bool {
	_, ok := cg.routers[id]
	return ok
}

// InterruptPoints returns the nodes after which execution pauses, sorted.
func (cg *CompiledGraph[S, U]) InterruptPoints() []string {
	ids := make([]string, 0, len(cg.interruptAfter))
	for id := range cg.interruptAfter {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsInterruptPoint reports whether execution pauses after the node.
func (cg *CompiledGraph[S, U]) IsInterruptPoint(id string) bool {
	return cg.interruptAfter[id]
}
