package flowgraph

import (
	"log/slog"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/checkpoint"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/observability"
)

// runConfig holds configuration for graph execution.
type runConfig struct {
	maxIterations  int
	sessionID      string
	store          checkpoint.Store
	observer       event.Sink
	logger         *slog.Logger
	metrics        observability.MetricsRecorder
	spans          observability.SpanManager
	tracingEnabled bool
	graphName      string

	// sequence counts pauses within one session lineage.
	sequence int
}

// defaultRunConfig returns the default execution configuration.
// There is no iteration cap unless WithMaxIterations is given.
func defaultRunConfig() runConfig {
	return runConfig{
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		graphName: "flowgraph",
	}
}

// RunOption configures execution behavior.
type RunOption func(*runConfig)

// WithMaxIterations caps the number of node executions. Exceeding the cap
// returns a *MaxIterationsError. Default: unlimited.
//
// Example:
//
//	result, err := compiled.Run(ctx, state, flowgraph.WithMaxIterations(100))
func WithMaxIterations(n int) RunOption {
	return func(c *runConfig) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithSession sets the session key used for checkpoints.
// The session ID also becomes the run ID seen by nodes.
func WithSession(id string) RunOption {
	return func(c *runConfig) {
		c.sessionID = id
	}
}

// WithCheckpointStore enables interrupt points. Requires WithSession.
func WithCheckpointStore(store checkpoint.Store) RunOption {
	return func(c *runConfig) {
		c.store = store
	}
}

// WithObserver streams events emitted during the run to sink.
func WithObserver(sink event.Sink) RunOption {
	return func(c *runConfig) {
		c.observer = sink
	}
}

// WithRunLogger sets the logger used for run-level observability logs.
func WithRunLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics enables OpenTelemetry metrics for the run.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) {
		if enabled {
			c.metrics = observability.NewMetricsRecorder()
		} else {
			c.metrics = observability.NoopMetrics{}
		}
	}
}

// WithTracing enables OpenTelemetry spans for the run and its nodes.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) {
		c.tracingEnabled = enabled
		if enabled {
			c.spans = observability.NewSpanManager()
		} else {
			c.spans = observability.NoopSpanManager{}
		}
	}
}

// WithMetricsRecorder records run metrics through m instead of the recorder
// bound to the global meter provider. A nil m disables metrics.
func WithMetricsRecorder(m observability.MetricsRecorder) RunOption {
	return func(c *runConfig) {
		if m == nil {
			m = observability.NoopMetrics{}
		}
		c.metrics = m
	}
}

// WithSpanManager traces the run through sm instead of the global tracer
// provider. A nil sm disables tracing.
func WithSpanManager(sm observability.SpanManager) RunOption {
	return func(c *runConfig) {
		if sm == nil {
			c.tracingEnabled = false
			c.spans = observability.NoopSpanManager{}
			return
		}
		c.tracingEnabled = true
		c.spans = sm
	}
}

// WithGraphName labels the run span.
func WithGraphName(name string) RunOption {
	return func(c *runConfig) {
		if name != "" {
			c.graphName = name
		}
	}
}
