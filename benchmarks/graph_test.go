package benchmarks

import (
	"fmt"
	"slices"
	"testing"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
)

// State is the shared state used by the benchmarks.
type State struct {
	Value int      `json:"value"`
	Steps []string `json:"steps"`
}

// Delta is State's partial update.
type Delta struct {
	Value *int
	Steps []string
}

func (d Delta) Merge(next Delta) Delta {
	if next.Value != nil {
		d.Value = next.Value
	}
	d.Steps = append(slices.Clone(d.Steps), next.Steps...)
	return d
}

func (s State) Apply(d Delta) State {
	if d.Value != nil {
		s.Value = *d.Value
	}
	if len(d.Steps) > 0 {
		s.Steps = append(slices.Clone(s.Steps), d.Steps...)
	}
	return s
}

func increment(ctx flowgraph.Context, s State) (Delta, error) {
	v := s.Value + 1
	return Delta{Value: &v}, nil
}

func buildLinearGraph(n int) *flowgraph.Graph[State, Delta] {
	g := flowgraph.NewGraph[State, Delta]()
	for i := 0; i < n; i++ {
		g.AddNode(fmt.Sprintf("node-%d", i), increment)
	}
	for i := 0; i < n-1; i++ {
		g.AddEdge(fmt.Sprintf("node-%d", i), fmt.Sprintf("node-%d", i+1))
	}
	g.AddEdge(fmt.Sprintf("node-%d", n-1), flowgraph.END)
	g.SetEntry("node-0")
	return g
}

func buildBranchingGraph() *flowgraph.Graph[State, Delta] {
	parity := func(ctx flowgraph.Context, s State) string {
		if s.Value%2 == 0 {
			return "even"
		}
		return "odd"
	}
	return flowgraph.NewGraph[State, Delta]().
		AddNode("start", increment).
		AddNode("even", increment).
		AddNode("odd", increment).
		AddConditionalEdges("start", parity, map[string]string{
			"even": "even",
			"odd":  "odd",
		}).
		AddEdge("even", flowgraph.END).
		AddEdge("odd", flowgraph.END).
		SetEntry("start")
}

func buildLoopGraph(iterations int) *flowgraph.Graph[State, Delta] {
	again := func(ctx flowgraph.Context, s State) string {
		if s.Value < iterations {
			return "again"
		}
		return "done"
	}
	return flowgraph.NewGraph[State, Delta]().
		AddNode("loop", increment).
		AddConditionalEdges("loop", again, map[string]string{
			"again": "loop",
			"done":  flowgraph.END,
		}).
		SetEntry("loop")
}

func mustCompile(g *flowgraph.Graph[State, Delta]) *flowgraph.CompiledGraph[State, Delta] {
	compiled, err := g.Compile()
	if err != nil {
		panic(err)
	}
	return compiled
}

// BenchmarkAddNode_100 measures building a 100-node graph.
func BenchmarkAddNode_100(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		g := flowgraph.NewGraph[State, Delta]()
		for j := 0; j < 100; j++ {
			g.AddNode(fmt.Sprintf("node-%d", j), increment)
		}
	}
}

func BenchmarkCompile_Linear(b *testing.B) {
	for _, n := range []int{5, 10, 50, 100} {
		b.Run(fmt.Sprint(n), func(b *testing.B) {
			g := buildLinearGraph(n)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _ = g.Compile()
			}
		})
	}
}

func BenchmarkCompile_Branching(b *testing.B) {
	g := buildBranchingGraph()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = g.Compile()
	}
}
