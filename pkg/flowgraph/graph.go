package flowgraph

import (
	"fmt"
	"strings"
	"sync"
)

// Graph is a mutable builder for creating execution graphs.
// Use NewGraph to create a new graph, then chain AddNode, AddEdge,
// AddConditionalEdges and SetEntry calls to define the workflow.
//
// Graph is NOT thread-safe during building. Use a single goroutine
// to construct the graph, then call Compile() to create an immutable
// CompiledGraph that can be safely shared.
//
// Example:
//
//	graph := flowgraph.NewGraph[State, Update]().
//	    AddNode("classify", classify).
//	    AddNode("weather", weather).
//	    AddNode("doc", doc).
//	    AddConditionalEdges("classify", routeIntent, map[string]string{
//	        "weather": "weather",
//	        "doc":     "doc",
//	    }).
//	    AddEdge("weather", flowgraph.END).
//	    AddEdge("doc", flowgraph.END).
//	    SetEntry("classify")
//
//	compiled, err := graph.Compile()
type Graph[S State[S, U], U Update[U]] struct {
	mu             sync.RWMutex
	nodes          map[string]NodeFunc[S, U]
	subgraphs      map[string]*CompiledGraph[S, U]
	edges          map[string][]string
	routers        map[string]RouterFunc[S]
	branches       map[string]map[string]string
	interruptAfter map[string]bool
	entryPoint     string
}

// NewGraph creates a new graph builder for state type S and update type U.
func NewGraph[S State[S, U], U Update[U]]() *Graph[S, U] {
	return &Graph[S, U]{
		nodes:          make(map[string]NodeFunc[S, U]),
		subgraphs:      make(map[string]*CompiledGraph[S, U]),
		edges:          make(map[string][]string),
		routers:        make(map[string]RouterFunc[S]),
		branches:       make(map[string]map[string]string),
		interruptAfter: make(map[string]bool),
	}
}

// AddNode adds a named node to the graph.
// Returns the graph for method chaining.
//
// Panics if:
//   - id is empty
//   - id is the reserved word "END" or "__end__" (case-insensitive)
//   - id contains whitespace (space, tab, newline)
//   - fn is nil
//   - id already exists in the graph
func (g *Graph[S, U]) AddNode(id string, fn NodeFunc[S, U]) *Graph[S, U] {
	validateNodeID(id)

	if fn == nil {
		panic("flowgraph: node function cannot be nil")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.nodes[id]; exists {
		panic(fmt.Sprintf("flowgraph: duplicate node ID: %s", id))
	}

	g.nodes[id] = fn
	return g
}

// AddSubgraph adds a compiled graph as a single compound node.
// The child runs from its own entry on the parent's state until it reaches
// its own END; the merge of every update it applied becomes the node's
// partial update.
//
// Panics under the same conditions as AddNode, or if sub is nil.
func (g *Graph[S, U]) AddSubgraph(id string, sub *CompiledGraph[S, U]) *Graph[S, U] {
	if sub == nil {
		panic("flowgraph: subgraph cannot be nil")
	}

	g.AddNode(id, subgraphNode(id, sub))

	g.mu.Lock()
	g.subgraphs[id] = sub
	g.mu.Unlock()
	return g
}

// AddEdge adds an unconditional edge from one node to another.
// The target can be a node ID or flowgraph.END.
// Returns the graph for method chaining.
//
// Edge validation happens at Compile() time, not here.
// This allows edges to be added in any order.
func (g *Graph[S, U]) AddEdge(from, to string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.edges[from] = append(g.edges[from], to)
	return g
}

// AddConditionalEdges attaches a router and its edge table to a node.
// After the node completes, the router's label is looked up in table to
// find the next node (or END). Every target is validated at Compile() time;
// a label missing from the table is fatal at run time.
//
// A node can have either simple edges or a conditional edge, not both.
// If both are present, the conditional edge takes precedence.
func (g *Graph[S, U]) AddConditionalEdges(from string, router RouterFunc[S], table map[string]string) *Graph[S, U] {
	if router == nil {
		panic("flowgraph: router function cannot be nil")
	}
	if len(table) == 0 {
		panic("flowgraph: edge table cannot be empty")
	}

	copied := make(map[string]string, len(table))
	for label, target := range table {
		if label == "" {
			panic("flowgraph: branch label cannot be empty")
		}
		copied[label] = target
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.routers[from] = router
	g.branches[from] = copied
	return g
}

// InterruptAfter marks nodes after which execution pauses. When a run
// completes one of these nodes and a checkpoint store is configured, the
// state is persisted and Run returns with StatusInterrupted.
func (g *Graph[S, U]) InterruptAfter(ids ...string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range ids {
		g.interruptAfter[id] = true
	}
	return g
}

// SetEntry designates the entry point node.
// This must be called before Compile().
// Returns the graph for method chaining.
//
// Entry point validation happens at Compile() time.
func (g *Graph[S, U]) SetEntry(id string) *Graph[S, U] {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.entryPoint = id
	return g
}

func validateNodeID(id string) {
	if id == "" {
		panic("flowgraph: node ID cannot be empty")
	}

	idLower := strings.ToLower(id)
	if idLower == "end" || idLower == END {
		panic("flowgraph: node ID cannot be reserved word 'END'")
	}

	if strings.ContainsAny(id, " \t\n\r") {
		panic("flowgraph: node ID cannot contain whitespace")
	}
}
