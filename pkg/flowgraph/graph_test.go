package flowgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGraph(t *testing.T) {
	g := NewGraph[trail, step]()

	require.NotNil(t, g)
	assert.Empty(t, g.nodes)
	assert.Empty(t, g.edges)
	assert.Empty(t, g.entryPoint)
}

func TestGraph_AddNode(t *testing.T) {
	g := NewGraph[trail, step]().AddNode("a", visit("a"))

	assert.Contains(t, g.nodes, "a")
}

func TestGraph_AddNode_InvalidIDs_Panic(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"empty", ""},
		{"END upper", "END"},
		{"end lower", "end"},
		{"end constant", END},
		{"space", "my node"},
		{"tab", "my\tnode"},
		{"newline", "my\nnode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() {
				NewGraph[trail, step]().AddNode(tt.id, visit("x"))
			})
		})
	}
}

func TestGraph_AddNode_NilFunc_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "flowgraph: node function cannot be nil", func() {
		NewGraph[trail, step]().AddNode("a", nil)
	})
}

func TestGraph_AddNode_DuplicateID_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "flowgraph: duplicate node ID: a", func() {
		NewGraph[trail, step]().
			AddNode("a", visit("a")).
			AddNode("a", visit("a"))
	})
}

func TestGraph_AddNode_ValidIDs(t *testing.T) {
	for _, id := range []string{"doc", "doc_retry", "doc-flow", "node123", "天气", "endpoint"} {
		t.Run(id, func(t *testing.T) {
			assert.NotPanics(t, func() {
				NewGraph[trail, step]().AddNode(id, visit(id))
			})
		})
	}
}

func TestGraph_AddEdge(t *testing.T) {
	g := NewGraph[trail, step]().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddEdge("a", "b").
		AddEdge("b", END)

	assert.Equal(t, []string{"b"}, g.edges["a"])
	assert.Equal(t, []string{END}, g.edges["b"])
}

func TestGraph_AddConditionalEdges(t *testing.T) {
	table := map[string]string{"left": "l", "right": END}
	g := NewGraph[trail, step]().
		AddNode("a", visit("a")).
		AddConditionalEdges("a", byRoute, table)

	assert.Contains(t, g.routers, "a")
	assert.Equal(t, table, g.branches["a"])

	// The builder keeps its own copy of the table.
	table["left"] = "changed"
	assert.Equal(t, "l", g.branches["a"]["left"])
}

func TestGraph_AddConditionalEdges_Misuse_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "flowgraph: router function cannot be nil", func() {
		NewGraph[trail, step]().AddConditionalEdges("a", nil, map[string]string{"x": END})
	})
	assert.PanicsWithValue(t, "flowgraph: edge table cannot be empty", func() {
		NewGraph[trail, step]().AddConditionalEdges("a", byRoute, nil)
	})
	assert.PanicsWithValue(t, "flowgraph: branch label cannot be empty", func() {
		NewGraph[trail, step]().AddConditionalEdges("a", byRoute, map[string]string{"": END})
	})
}

func TestGraph_AddSubgraph_Nil_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "flowgraph: subgraph cannot be nil", func() {
		NewGraph[trail, step]().AddSubgraph("sub", nil)
	})
}

func TestGraph_SetEntry_CanBeOverwritten(t *testing.T) {
	g := NewGraph[trail, step]().SetEntry("a").SetEntry("b")

	assert.Equal(t, "b", g.entryPoint)
}

func TestGraph_InterruptAfter(t *testing.T) {
	g := NewGraph[trail, step]().InterruptAfter("a", "b")

	assert.True(t, g.interruptAfter["a"])
	assert.True(t, g.interruptAfter["b"])
}
