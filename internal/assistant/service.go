package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/checkpoint"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
)

// ErrNothingPending is returned by Continue for a session without a
// paused run.
var ErrNothingPending = errors.New("no paused run for session")

// Service runs the assistant graphs for sessions and streams their events.
type Service struct {
	assistant *Assistant
	store     checkpoint.Store
	logger    *slog.Logger
	metrics   bool
	tracing   bool
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger for runs.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTelemetry enables OpenTelemetry metrics and spans for every run.
func WithTelemetry(enabled bool) ServiceOption {
	return func(s *Service) {
		s.metrics = enabled
		s.tracing = enabled
	}
}

// NewService creates a Service persisting paused runs in store.
func NewService(a *Assistant, store checkpoint.Store, opts ...ServiceOption) *Service {
	s := &Service{assistant: a, store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Assistant returns the underlying graphs.
func (s *Service) Assistant() *Assistant { return s.assistant }

func (s *Service) runOptions(sessionID string, sink event.Sink, graphName string) []flowgraph.RunOption {
	return []flowgraph.RunOption{
		flowgraph.WithSession(sessionID),
		flowgraph.WithCheckpointStore(s.store),
		flowgraph.WithObserver(sink),
		flowgraph.WithRunLogger(s.logger),
		flowgraph.WithMetrics(s.metrics),
		flowgraph.WithTracing(s.tracing),
		flowgraph.WithGraphName(graphName),
	}
}

func (s *Service) context(ctx context.Context, sessionID string) flowgraph.Context {
	return flowgraph.NewContext(ctx,
		flowgraph.WithLogger(s.logger.With("session_id", sessionID)),
		flowgraph.WithContextRunID(sessionID))
}

// Start runs the workflow for a new request. A paused run of the same
// session is replaced. When the run pauses, an interrupt event carrying
// the draft is emitted; a structural failure is emitted as an error event
// and returned.
func (s *Service) Start(ctx context.Context, sessionID, input string, sink event.Sink) (flowgraph.Result[State], error) {
	if sink == nil {
		sink = event.Discard
	}
	state := NewState(sessionID, sessionID, input)
	res, err := s.assistant.graph.Run(s.context(ctx, sessionID), state, s.runOptions(sessionID, sink, "assistant")...)
	return s.finish(res, err, sink)
}

// Continue resumes a paused session with a rewrite instruction. An empty
// instruction, "done" or "完成" ends the rewrite cycle and produces the
// report. Returns ErrNothingPending when the session is not paused.
func (s *Service) Continue(ctx context.Context, sessionID, instruction string, sink event.Sink) (flowgraph.Result[State], error) {
	if sink == nil {
		sink = event.Discard
	}
	update := Update{RewriteInstruction: ptr(strings.TrimSpace(instruction))}
	res, err := s.assistant.graph.Resume(s.context(ctx, sessionID), sessionID, update, s.runOptions(sessionID, sink, "assistant")...)
	if errors.Is(err, flowgraph.ErrNothingToResume) {
		return res, fmt.Errorf("%w: %s", ErrNothingPending, sessionID)
	}
	return s.finish(res, err, sink)
}

func (s *Service) finish(res flowgraph.Result[State], err error, sink event.Sink) (flowgraph.Result[State], error) {
	if err != nil {
		sink.Emit(event.Error(err.Error()))
		return res, err
	}
	if res.Interrupted() {
		s.logger.Info("waiting for rewrite instruction",
			"session_id", res.State.SessionID,
			"at", res.InterruptedAt,
			"doc_len", len(res.State.Doc))
		sink.Emit(event.Interrupt(res.State.Doc))
	}
	return res, nil
}

// SelectionRequest asks for a rewrite of a fragment of the draft.
type SelectionRequest struct {
	Text string
	Hint string
	// SessionID, when set, supplies the paused session's draft as context.
	SessionID string
}

// RewriteSelection rewrites a selected fragment, streaming chunks and a
// final done event. An empty selection emits an error event and returns
// ErrEmptySelection.
func (s *Service) RewriteSelection(ctx context.Context, req SelectionRequest, sink event.Sink) (string, error) {
	if sink == nil {
		sink = event.Discard
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		sink.Emit(event.Error(ErrEmptySelection.Error()))
		return "", ErrEmptySelection
	}

	var doc string
	if req.SessionID != "" {
		state, _, err := s.Snapshot(req.SessionID)
		switch {
		case err == nil:
			doc = state.Doc
		case !errors.Is(err, flowgraph.ErrNothingToResume):
			s.logger.Warn("selection context unavailable", "session_id", req.SessionID, "error", err)
		}
	}

	fctx := flowgraph.NewContext(ctx, flowgraph.WithLogger(s.logger))
	res, err := s.assistant.selection.Run(fctx,
		SelectionState{Text: text, Hint: strings.TrimSpace(req.Hint), Doc: doc},
		flowgraph.WithObserver(sink),
		flowgraph.WithRunLogger(s.logger),
		flowgraph.WithMetrics(s.metrics),
		flowgraph.WithTracing(s.tracing),
		flowgraph.WithGraphName("selection"))
	if err != nil {
		sink.Emit(event.Error(err.Error()))
		return "", err
	}
	sink.Emit(event.Done(res.State.Result))
	return res.State.Result, nil
}

// Pending reports whether the session is waiting for an instruction.
func (s *Service) Pending(sessionID string) (bool, error) {
	return s.assistant.graph.Pending(s.store, sessionID)
}

// Snapshot returns the paused state of a session and where it stopped.
// The error wraps flowgraph.ErrNothingToResume when nothing is paused.
func (s *Service) Snapshot(sessionID string) (State, string, error) {
	return s.assistant.graph.Snapshot(s.store, sessionID)
}
