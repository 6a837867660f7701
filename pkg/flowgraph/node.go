package flowgraph

// END is the terminal node identifier.
// Use this as an edge target to indicate the graph should terminate.
const END = "__end__"

// Update is implemented by partial-update types. Merge batches next after
// the receiver so that s.Apply(a).Apply(b) equals s.Apply(a.Merge(b)).
type Update[U any] interface {
	Merge(next U) U
}

// State is implemented by state types that absorb partial updates.
// Apply must only touch the fields present in the update.
type State[S, U any] interface {
	Apply(update U) S
}

// NodeFunc is the signature for all node functions.
// Nodes receive the execution context and a read view of the current state
// and return a partial update. The executor merges the update into the
// shared state; nodes never mutate state directly.
//
// Example:
//
//	func classify(ctx flowgraph.Context, s State) (Update, error) {
//	    route := RouteDoc
//	    return Update{IntentRoute: &route}, nil
//	}
type NodeFunc[S, U any] func(ctx Context, state S) (U, error)

// RouterFunc selects a branch label after a node completes.
// It is evaluated against the post-update state. The label is looked up in
// the node's edge table; labels missing from the table abort the run.
//
// Example:
//
//	func router(ctx flowgraph.Context, s State) string {
//	    if s.Done {
//	        return "finish"
//	    }
//	    return "again"
//	}
type RouterFunc[S any] func(ctx Context, state S) string
