/*
Package flowgraph runs directed graphs of steps over a shared, typed state.

# Overview

Nodes read the current state and return a partial update. The executor
applies each update in completion order, then follows either the node's
single edge or the label its router picks from an edge table. A run stops at
END, at an interrupt point, or on a structural error.

State and update types are explicit structs: the state implements
Apply(U) S and the update implements Merge(U) U. Fields written with
replace semantics are usually pointers on the update, append fields are
slices.

# Basic Usage

	type State struct {
	    Input  string
	    Report string
	}

	type Update struct {
	    Report *string
	}

	func (u Update) Merge(next Update) Update {
	    if next.Report != nil {
	        u.Report = next.Report
	    }
	    return u
	}

	func (s State) Apply(u Update) State {
	    if u.Report != nil {
	        s.Report = *u.Report
	    }
	    return s
	}

	func summarize(ctx flowgraph.Context, s State) (Update, error) {
	    out := "summary of " + s.Input
	    return Update{Report: &out}, nil
	}

	compiled, err := flowgraph.NewGraph[State, Update]().
	    AddNode("summarize", summarize).
	    AddEdge("summarize", flowgraph.END).
	    SetEntry("summarize").
	    Compile()

	result, err := compiled.Run(flowgraph.NewContext(context.Background()), State{Input: "hi"})

# Conditional Edges

A router returns a label, and the edge table maps labels to nodes. Every
target is checked by Compile; a label missing from the table aborts the run
with a *RouterError.

	graph.AddConditionalEdges("doc", routeDoc, map[string]string{
	    "retry": "doc_retry",
	    "done":  flowgraph.END,
	})

There is no iteration cap by default. Bounded loops keep their own counter
in state; WithMaxIterations adds a guard for graphs that want one.

# Subgraphs

AddSubgraph embeds a compiled graph as one node. The child runs to its own
END and the merge of its updates becomes the node's update.

# Interrupt and Resume

Nodes listed in InterruptAfter pause the run once they complete. With a
checkpoint store and a session the state is saved and Run returns a Result
whose Status is StatusInterrupted:

	store := checkpoint.NewMemoryStore()
	result, err := compiled.Run(ctx, state,
	    flowgraph.WithSession("thread-1"),
	    flowgraph.WithCheckpointStore(store))

	if result.Interrupted() {
	    result, err = compiled.Resume(ctx, "thread-1", correction,
	        flowgraph.WithCheckpointStore(store))
	}

Resume merges the update into the saved state and evaluates the interrupt
point's edges on the result. ErrNothingToResume reports a session without a
paused run.

# Step Helpers

Call wraps an external call with a timeout and returns a tagged Outcome, so
steps record timeouts as data. FanOut runs independent tasks on a bounded
pool and returns results in completion order. WithRetry retries a node a
fixed number of times.

# Events

Nodes stream progress through ctx.Emit. WithObserver routes a run's events
to an event.Sink; the executor itself emits a status event after each node.

# Error Handling

Structural problems surface as typed errors (NodeError, PanicError,
RouterError, CancellationError, MaxIterationsError, CheckpointError); use
errors.Is and errors.As against the sentinels in errors.go.

# Observability

Run options WithRunLogger, WithMetrics and WithTracing enable slog logs,
OpenTelemetry metrics and spans on the global providers. WithMetricsRecorder
and WithSpanManager bind a run to specific providers instead. See the
observability package.
*/
package flowgraph
