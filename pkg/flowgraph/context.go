package flowgraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
)

// Context provides execution context to nodes.
// It extends context.Context with a logger, run metadata and the event sink.
//
// Context is immutable after creation. The executor creates derived contexts
// for each node with updated NodeID and enriched logger.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node context.
	// Never returns nil - defaults to slog.Default() if not configured.
	Logger() *slog.Logger

	// RunID returns the identifier for this execution run. When a session
	// is configured it is the session ID.
	RunID() string

	// NodeID returns the current node being executed.
	// Empty string outside node execution.
	NodeID() string

	// Emit streams an event to the run's observer. Never blocks on a
	// missing observer.
	Emit(e event.Event)
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger *slog.Logger
	base   *slog.Logger
	sink   event.Sink
	runID  string
	nodeID string

	// run is the configuration of the enclosing Run, inherited by subgraphs.
	run *runConfig
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// NodeID returns the current node identifier.
func (c *executionContext) NodeID() string {
	return c.nodeID
}

// Emit forwards e to the sink.
func (c *executionContext) Emit(e event.Event) {
	c.sink.Emit(e)
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context.
// The logger will be enriched with run_id and node_id during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		if logger != nil {
			c.logger = logger
			c.base = logger
		}
	}
}

// WithSink sets the default event sink for the context.
// A WithObserver run option takes precedence for that run.
func WithSink(sink event.Sink) ContextOption {
	return func(c *executionContext) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// WithContextRunID sets the run identifier for the context.
// If not set, a UUID will be auto-generated.
func WithContextRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := flowgraph.NewContext(context.Background(),
//	    flowgraph.WithLogger(myLogger),
//	    flowgraph.WithContextRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		base:    slog.Default(),
		sink:    event.Discard,
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// derive returns a copy of ctx carrying the given run ID and sink.
// Contexts from other implementations are wrapped so the executor can
// always enrich them.
func derive(ctx Context, runID string, sink event.Sink) *executionContext {
	ec, ok := ctx.(*executionContext)
	if !ok {
		ec = &executionContext{
			Context: ctx,
			logger:  ctx.Logger(),
			base:    ctx.Logger(),
			sink:    event.SinkFunc(ctx.Emit),
			runID:   ctx.RunID(),
			nodeID:  ctx.NodeID(),
		}
	}

	out := *ec
	if runID != "" {
		out.runID = runID
	}
	if sink != nil {
		out.sink = sink
	}
	return &out
}

// withContext returns a copy bound to a different context.Context, used to
// carry tracing spans into nodes.
func (c *executionContext) withContext(ctx context.Context) *executionContext {
	out := *c
	out.Context = ctx
	return &out
}

// withNodeID returns a new context with the given node ID set.
func (c *executionContext) withNodeID(nodeID string) *executionContext {
	out := *c
	out.logger = c.base.With("run_id", c.runID, "node_id", nodeID)
	out.nodeID = nodeID
	return &out
}
