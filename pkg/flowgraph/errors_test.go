package flowgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "node",
			err:  &NodeError{NodeID: "weather", Op: "execute", Err: errors.New("connection failed")},
			want: "node weather: execute: connection failed",
		},
		{
			name: "panic",
			err:  &PanicError{NodeID: "doc", Value: "unexpected nil"},
			want: "node doc panicked: unexpected nil",
		},
		{
			name: "cancellation",
			err:  &CancellationError{NodeID: "rss", Cause: context.Canceled},
			want: "cancelled before node rss: context canceled",
		},
		{
			name: "router",
			err:  &RouterError{FromNode: "intent", Label: "music", Err: ErrEdgeNotFound},
			want: `router from intent returned "music": ` + ErrEdgeNotFound.Error(),
		},
		{
			name: "max iterations",
			err:  &MaxIterationsError{Max: 10, LastNodeID: "loop"},
			want: "exceeded maximum iterations (10) at node loop",
		},
		{
			name: "checkpoint",
			err:  &CheckpointError{NodeID: "doc_flow", Op: "save", Err: errors.New("disk full")},
			want: "checkpoint save at node doc_flow: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestTypedErrors_Unwrap(t *testing.T) {
	underlying := errors.New("underlying")

	assert.ErrorIs(t, &NodeError{Err: underlying}, underlying)
	assert.ErrorIs(t, &CheckpointError{Err: underlying}, underlying)
	assert.ErrorIs(t, &CancellationError{Cause: context.DeadlineExceeded}, context.DeadlineExceeded)
	assert.ErrorIs(t, &RouterError{Err: ErrEdgeNotFound}, ErrEdgeNotFound)
	assert.ErrorIs(t, &MaxIterationsError{Max: 1}, ErrMaxIterations)
}

func TestLastNodeOf(t *testing.T) {
	assert.Equal(t, "a", lastNodeOf(&NodeError{NodeID: "a"}))
	assert.Equal(t, "b", lastNodeOf(&PanicError{NodeID: "b"}))
	assert.Equal(t, "c", lastNodeOf(&MaxIterationsError{LastNodeID: "c"}))
	assert.Equal(t, "d", lastNodeOf(&CancellationError{NodeID: "d"}))
	assert.Equal(t, "e", lastNodeOf(&RouterError{FromNode: "e"}))
	assert.Equal(t, "", lastNodeOf(errors.New("plain")))
}
