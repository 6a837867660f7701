package flowgraph

import (
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/observability"
)

// WithRetry wraps node so it is attempted up to maxAttempts times. After
// each attempt shouldRetry inspects the node's update and error; returning
// false ends the loop. The last attempt's result is returned as is.
//
// Retrying stops early when ctx is cancelled.
//
// Example:
//
//	doc := flowgraph.WithRetry(docStep, 4, func(u Update, err error) bool {
//	    return err == nil && u.DocStatus != nil && *u.DocStatus == StatusTimeout
//	})
func WithRetry[S any, U any](node NodeFunc[S, U], maxAttempts int, shouldRetry func(update U, err error) bool) NodeFunc[S, U] {
	if node == nil {
		panic("flowgraph: node function cannot be nil")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	return func(ctx Context, state S) (U, error) {
		var (
			update U
			err    error
		)
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			update, err = node(ctx, state)
			if attempt == maxAttempts || !shouldRetry(update, err) {
				break
			}
			if ctx.Err() != nil {
				break
			}
			if err != nil {
				observability.LogNodeRetry(ctx.Logger(), ctx.NodeID(), attempt, err)
			} else {
				ctx.Logger().Warn("node attempt will be retried",
					"node_id", ctx.NodeID(), "attempt", attempt)
			}
		}
		return update, err
	}
}
