package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Status describes how a run stopped.
type Status string

// Run statuses.
const (
	StatusCompleted   Status = "completed"
	StatusInterrupted Status = "interrupted"
)

// Result is the outcome of Run or Resume.
type Result[S any] struct {
	// State is the accumulated state when the run stopped.
	State S
	// Status is StatusCompleted at END or StatusInterrupted at a pause.
	Status Status
	// InterruptedAt is the interrupt point that paused the run.
	InterruptedAt string
	// Steps is the number of nodes executed by this invocation.
	Steps int
}

// Interrupted reports whether the run paused at an interrupt point.
func (r Result[S]) Interrupted() bool {
	return r.Status == StatusInterrupted
}

// Run executes the graph with the given initial state.
//
// On success the result holds the state after the last node executed.
// On error it holds the state at the point of failure.
//
// Execution flow:
//  1. Start at the entry point node
//  2. Check for cancellation
//  3. Execute the current node and apply its partial update
//  4. Pause if the node is an interrupt point and a store is configured
//  5. Determine the next node (simple edge, or router label via edge table)
//  6. Repeat until END is reached or an error occurs
//
// Example:
//
//	ctx := flowgraph.NewContext(context.Background())
//	result, err := compiled.Run(ctx, initialState,
//	    flowgraph.WithSession("thread-1"),
//	    flowgraph.WithCheckpointStore(store))
func (cg *CompiledGraph[S, U]) Run(ctx Context, state S, opts ...RunOption) (Result[S], error) {
	if ctx == nil {
		return Result[S]{State: state}, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.store != nil && cfg.sessionID == "" {
		return Result[S]{State: state}, ErrSessionRequired
	}

	return cg.execute(ctx, state, cg.entryPoint, &cfg)
}

// execute wraps the node loop with run-level logging, tracing and metrics.
func (cg *CompiledGraph[S, U]) execute(ctx Context, state S, start string, cfg *runConfig) (result Result[S], runErr error) {
	ec := derive(ctx, cfg.sessionID, cfg.observer)
	ec.run = cfg
	runID := ec.runID

	startTime := time.Now()
	observability.LogRunStart(cfg.logger, runID)

	var tracingCtx context.Context = ec
	if cfg.tracingEnabled {
		var runSpan trace.Span
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ec, cfg.graphName, runID)
		defer func() {
			cfg.spans.EndSpanWithError(runSpan, runErr)
		}()
	}

	result, runErr = cg.loop(tracingCtx, ec, state, start, cfg, nil)

	duration := time.Since(startTime)
	cfg.metrics.RecordGraphRun(ec, runErr == nil, duration)

	switch {
	case runErr != nil:
		observability.LogRunError(cfg.logger, runID, runErr, float64(duration.Milliseconds()), lastNodeOf(runErr))
	case result.Interrupted():
		observability.LogRunInterrupted(cfg.logger, runID, result.InterruptedAt)
	default:
		observability.LogRunComplete(cfg.logger, runID, float64(duration.Milliseconds()), result.Steps)
		if cfg.store != nil {
			if err := cfg.store.Delete(cfg.sessionID); err != nil {
				observability.LogCheckpointError(cfg.logger, END, "delete", err)
			}
		}
	}

	return result, runErr
}

// loop runs nodes starting at current until END, an interrupt or an error.
// onUpdate, when set, observes every applied update in order.
func (cg *CompiledGraph[S, U]) loop(tracingCtx context.Context, ec *executionContext, state S, current string, cfg *runConfig, onUpdate func(U)) (Result[S], error) {
	steps := 0

	for current != END {
		if cfg.maxIterations > 0 && steps >= cfg.maxIterations {
			return Result[S]{State: state, Steps: steps}, &MaxIterationsError{
				Max:        cfg.maxIterations,
				LastNodeID: current,
				State:      state,
			}
		}

		select {
		case <-ec.Done():
			return Result[S]{State: state, Steps: steps}, &CancellationError{
				NodeID: current,
				State:  state,
				Cause:  ec.Err(),
			}
		default:
		}

		observability.LogNodeStart(cfg.logger, current)

		nodeTracingCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracingEnabled {
			nodeTracingCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, current)
		}

		nodeStart := time.Now()
		update, nodeErr := cg.executeNode(ec.withContext(nodeTracingCtx), current, state)
		nodeDuration := time.Since(nodeStart)

		cfg.metrics.RecordNodeExecution(nodeTracingCtx, current, nodeDuration, nodeErr)
		if cfg.tracingEnabled {
			cfg.spans.EndSpanWithError(nodeSpan, nodeErr)
		}

		if nodeErr != nil {
			observability.LogNodeError(cfg.logger, current, nodeErr)
			return Result[S]{State: state, Steps: steps}, nodeErr
		}

		state = state.Apply(update)
		if onUpdate != nil {
			onUpdate(update)
		}
		steps++

		observability.LogNodeComplete(cfg.logger, current, float64(nodeDuration.Milliseconds()))
		ec.Emit(event.Status(current, "completed"))

		if cg.interruptAfter[current] {
			if cfg.store != nil {
				if err := cg.saveCheckpoint(ec, cfg, current, state); err != nil {
					return Result[S]{State: state, Steps: steps}, err
				}
				cfg.metrics.RecordInterrupt(ec, current)
				cfg.spans.AddSpanEvent(tracingCtx, "interrupt", attribute.String("node.id", current))
				return Result[S]{
					State:         state,
					Status:        StatusInterrupted,
					InterruptedAt: current,
					Steps:         steps,
				}, nil
			}
			cfg.logger.Warn("interrupt point ignored without checkpoint store", "node_id", current)
		}

		next, err := cg.nextNode(ec, state, current)
		if err != nil {
			return Result[S]{State: state, Steps: steps}, err
		}
		current = next
	}

	return Result[S]{State: state, Status: StatusCompleted, Steps: steps}, nil
}

// executeNode executes a single node with panic recovery.
func (cg *CompiledGraph[S, U]) executeNode(ec *executionContext, nodeID string, state S) (update U, err error) {
	fn, exists := cg.nodes[nodeID]
	if !exists {
		return update, &NodeError{
			NodeID: nodeID,
			Op:     "lookup",
			Err:    fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			var zero U
			update = zero
			err = &PanicError{
				NodeID: nodeID,
				Value:  r,
				Stack:  string(debug.Stack()),
			}
		}
	}()

	update, err = fn(ec.withNodeID(nodeID), state)
	if err != nil {
		return update, &NodeError{
			NodeID: nodeID,
			Op:     "execute",
			Err:    err,
		}
	}

	return update, nil
}

// nextNode determines the next node to execute.
// Conditional edges take precedence over simple edges.
func (cg *CompiledGraph[S, U]) nextNode(ec *executionContext, state S, current string) (string, error) {
	if router, exists := cg.routers[current]; exists {
		label := router(ec.withNodeID(current), state)

		if label == "" {
			return "", &RouterError{
				FromNode: current,
				Label:    label,
				Err:      ErrInvalidRouterResult,
			}
		}

		next, ok := cg.branches[current][label]
		if !ok {
			return "", &RouterError{
				FromNode: current,
				Label:    label,
				Err:      ErrEdgeNotFound,
			}
		}
		return next, nil
	}

	edges := cg.edges[current]
	if len(edges) == 0 {
		return END, nil
	}

	// Multiple simple edges from one node are not fanned out; the first wins.
	return edges[0], nil
}

// lastNodeOf extracts the failing node from an execution error.
func lastNodeOf(err error) string {
	var nodeErr *NodeError
	var panicErr *PanicError
	var maxErr *MaxIterationsError
	var cancelErr *CancellationError
	var routerErr *RouterError

	switch {
	case errors.As(err, &nodeErr):
		return nodeErr.NodeID
	case errors.As(err, &panicErr):
		return panicErr.NodeID
	case errors.As(err, &maxErr):
		return maxErr.LastNodeID
	case errors.As(err, &cancelErr):
		return cancelErr.NodeID
	case errors.As(err, &routerErr):
		return routerErr.FromNode
	}
	return ""
}
