package flowgraph

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/checkpoint"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/observability"
)

// saveCheckpoint persists the state at an interrupt point.
func (cg *CompiledGraph[S, U]) saveCheckpoint(ec *executionContext, cfg *runConfig, nodeID string, state S) error {
	stateBytes, err := json.Marshal(state)
	if err != nil {
		return &CheckpointError{
			NodeID: nodeID,
			Op:     "serialize",
			Err:    fmt.Errorf("%w: %v", ErrSerializeState, err),
		}
	}

	cfg.sequence++
	cp := checkpoint.New(cfg.sessionID, nodeID, cfg.sequence, stateBytes)

	data, err := cp.Marshal()
	if err != nil {
		return &CheckpointError{NodeID: nodeID, Op: "marshal", Err: err}
	}

	if err := cfg.store.Save(cfg.sessionID, data); err != nil {
		return &CheckpointError{NodeID: nodeID, Op: "save", Err: err}
	}

	observability.LogCheckpoint(cfg.logger, nodeID, len(data))
	cfg.metrics.RecordCheckpoint(ec, nodeID, int64(len(data)))
	return nil
}

// loadCheckpoint reads and validates the paused run for a session.
func (cg *CompiledGraph[S, U]) loadCheckpoint(store checkpoint.Store, sessionID string) (*checkpoint.Checkpoint, S, error) {
	var zero S

	data, err := store.Load(sessionID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return nil, zero, fmt.Errorf("%w: session %s", ErrNothingToResume, sessionID)
		}
		return nil, zero, &CheckpointError{Op: "load", Err: err}
	}

	cp, err := checkpoint.Unmarshal(data)
	if err != nil {
		return nil, zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	if cp.Version != checkpoint.Version {
		return nil, zero, fmt.Errorf("%w: got %d, expected %d",
			ErrCheckpointVersionMismatch, cp.Version, checkpoint.Version)
	}

	if cp.SessionID != sessionID {
		return nil, zero, fmt.Errorf("%w: want %s, stored %s", ErrSessionMismatch, sessionID, cp.SessionID)
	}

	if !cg.HasNode(cp.NodeID) {
		return nil, zero, fmt.Errorf("%w: %s", ErrInvalidResumeNode, cp.NodeID)
	}

	var state S
	if err := json.Unmarshal(cp.State, &state); err != nil {
		return nil, zero, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}

	return cp, state, nil
}

// Resume continues a paused run. The session's checkpoint is loaded, the
// update is merged into the persisted state, and execution continues with
// the edges leaving the interrupt point, evaluated on the merged state.
//
// Returns an error wrapping ErrNothingToResume when the session has no
// paused run. When the resumed run reaches END the checkpoint is deleted;
// when it pauses again the checkpoint is overwritten.
//
// Example:
//
//	instruction := "更正式一些"
//	result, err := compiled.Resume(ctx, "thread-1", Update{RewriteInstruction: &instruction},
//	    flowgraph.WithCheckpointStore(store))
//	if errors.Is(err, flowgraph.ErrNothingToResume) {
//	    // tell the caller there is nothing pending
//	}
func (cg *CompiledGraph[S, U]) Resume(ctx Context, sessionID string, update U, opts ...RunOption) (Result[S], error) {
	var zero Result[S]

	if ctx == nil {
		return zero, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.sessionID = sessionID

	if cfg.store == nil {
		return zero, ErrStoreRequired
	}
	if cfg.sessionID == "" {
		return zero, ErrSessionRequired
	}

	cp, state, err := cg.loadCheckpoint(cfg.store, cfg.sessionID)
	if err != nil {
		return zero, err
	}

	state = state.Apply(update)
	cfg.sequence = cp.Sequence

	observability.LogResume(cfg.logger, cfg.sessionID, cp.NodeID, time.Since(cp.Timestamp))
	cfg.metrics.RecordResume(ctx, cp.NodeID)

	ec := derive(ctx, cfg.sessionID, cfg.observer)
	next, err := cg.nextNode(ec, state, cp.NodeID)
	if err != nil {
		return Result[S]{State: state}, err
	}

	return cg.execute(ctx, state, next, &cfg)
}

// Snapshot returns the persisted state of a paused session and the
// interrupt point it is waiting at.
func (cg *CompiledGraph[S, U]) Snapshot(store checkpoint.Store, sessionID string) (S, string, error) {
	cp, state, err := cg.loadCheckpoint(store, sessionID)
	if err != nil {
		var zero S
		return zero, "", err
	}
	return state, cp.NodeID, nil
}

// Pending reports whether the session has a paused run.
func (cg *CompiledGraph[S, U]) Pending(store checkpoint.Store, sessionID string) (bool, error) {
	_, err := store.Load(sessionID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
