package assistant

import (
	"fmt"
	"time"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
)

// steps binds the node functions to their dependencies.
type steps struct {
	d  Deps
	bg *background
}

// Assistant holds the compiled workflow graphs. It is safe for concurrent
// use; per-session state lives in the checkpoint store.
type Assistant struct {
	deps      Deps
	steps     *steps
	graph     *flowgraph.CompiledGraph[State, Update]
	selection *flowgraph.CompiledGraph[SelectionState, SelectionUpdate]
}

// New validates deps and compiles both graphs.
func New(deps Deps) (*Assistant, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	st := &steps{d: deps, bg: &background{timeout: 2 * time.Minute, logger: deps.Logger}}

	graph, err := buildGraph(st)
	if err != nil {
		return nil, fmt.Errorf("compile assistant graph: %w", err)
	}
	selection, err := buildSelectionGraph(st)
	if err != nil {
		return nil, fmt.Errorf("compile selection graph: %w", err)
	}
	return &Assistant{deps: deps, steps: st, graph: graph, selection: selection}, nil
}

// Graph returns the main workflow.
func (a *Assistant) Graph() *flowgraph.CompiledGraph[State, Update] { return a.graph }

// SelectionGraph returns the selection rewrite workflow.
func (a *Assistant) SelectionGraph() *flowgraph.CompiledGraph[SelectionState, SelectionUpdate] {
	return a.selection
}

// Wait blocks until background archiving and indexing finished.
func (a *Assistant) Wait() { a.steps.bg.Wait() }

// buildDocFlow is the document sub-flow: generate, and on timeout count a
// retry and generate again until the retry budget is spent.
//
//	doc ──timeout──▶ doc_retry ──timeout && count<max──▶ doc
//	 │                  │
//	 └──────done────────┴──▶ END
func buildDocFlow(st *steps) (*flowgraph.CompiledGraph[State, Update], error) {
	return flowgraph.NewGraph[State, Update]().
		AddNode(NodeDoc, st.doc).
		AddNode(NodeDocRetry, st.docRetry).
		AddConditionalEdges(NodeDoc, RouteDocFirst, map[string]string{
			LabelRetry: NodeDocRetry,
			LabelDone:  flowgraph.END,
		}).
		AddConditionalEdges(NodeDocRetry, docAfterRetry(st.d.Config.MaxDocRetries), map[string]string{
			LabelRetry: NodeDoc,
			LabelDone:  flowgraph.END,
		}).
		SetEntry(NodeDoc).
		Compile()
}

// buildGraph wires the main workflow:
//
//	chat ─▶ intent ─┬─ weather ─────────────────────────────┐
//	  │             ├─ rss ─────────────────────────────────┤
//	  │             └─ doc_flow ⏸ ─rewrite─▶ doc_rewrite ⏸ ─┤
//	  │                   └────────done──────────┴─────────▶ aggregator ─▶ END
//	  └─none──────────────────────────────────────────────▶
//
// The run pauses after doc_flow and after every doc_rewrite until the
// caller resumes with an instruction.
func buildGraph(st *steps) (*flowgraph.CompiledGraph[State, Update], error) {
	docFlow, err := buildDocFlow(st)
	if err != nil {
		return nil, fmt.Errorf("doc flow: %w", err)
	}

	rewriteTable := map[string]string{
		LabelRewrite: NodeRewrite,
		LabelDone:    NodeAggregator,
	}

	return flowgraph.NewGraph[State, Update]().
		AddNode(NodeChat, st.chat).
		AddNode(NodeIntent, st.intent).
		AddNode(NodeWeather, st.weather).
		AddNode(NodeRSS, st.rss).
		AddSubgraph(NodeDocFlow, docFlow).
		AddNode(NodeRewrite, st.rewrite).
		AddNode(NodeAggregator, st.aggregate).
		AddConditionalEdges(NodeChat, RouteChat, map[string]string{
			ChatIntentExpert: NodeIntent,
			ChatNone:         NodeAggregator,
		}).
		AddConditionalEdges(NodeIntent, RouteIntent, map[string]string{
			RouteWeather: NodeWeather,
			RouteRSS:     NodeRSS,
			RouteDoc:     NodeDocFlow,
		}).
		AddEdge(NodeWeather, NodeAggregator).
		AddEdge(NodeRSS, NodeAggregator).
		AddConditionalEdges(NodeDocFlow, RouteRewrite, rewriteTable).
		AddConditionalEdges(NodeRewrite, RouteRewrite, rewriteTable).
		AddEdge(NodeAggregator, flowgraph.END).
		InterruptAfter(NodeDocFlow, NodeRewrite).
		SetEntry(NodeChat).
		Compile()
}
