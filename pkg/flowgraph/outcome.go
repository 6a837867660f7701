package flowgraph

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// OutcomeKind tags how a delegated call ended.
type OutcomeKind string

// Outcome kinds.
const (
	OutcomeOK       OutcomeKind = "ok"
	OutcomeTimedOut OutcomeKind = "timeout"
	OutcomeFailed   OutcomeKind = "error"
)

// Outcome is the tagged result of Call. Value is set only for OutcomeOK,
// Err only for OutcomeFailed.
type Outcome[T any] struct {
	Kind  OutcomeKind
	Value T
	Err   error
}

// OK reports whether the call succeeded.
func (o Outcome[T]) OK() bool { return o.Kind == OutcomeOK }

// Reason returns a printable failure detail, empty on success.
func (o Outcome[T]) Reason() string {
	switch o.Kind {
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeFailed:
		if o.Err != nil {
			return o.Err.Error()
		}
		return "failed"
	}
	return ""
}

// Call runs fn under timeout and reports the result as data, so a step can
// turn a slow or failing external call into a status field instead of an
// error. A zero timeout only inherits ctx's deadline.
//
// On timeout the call is abandoned: fn's context is cancelled and its late
// result, if any, is dropped. A panic inside fn becomes OutcomeFailed.
//
// Example:
//
//	out := flowgraph.Call(ctx, 420*time.Second, func(ctx context.Context) (string, error) {
//	    return client.Stream(ctx, req, onChunk)
//	})
//	switch out.Kind {
//	case flowgraph.OutcomeTimedOut:
//	    status = StatusTimeout
//	}
func Call[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) Outcome[T] {
	var (
		callCtx context.Context
		cancel  context.CancelFunc
	)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		callCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(callCtx)
		done <- result{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			return Outcome[T]{Kind: OutcomeOK, Value: r.value}
		}
		if timedOut(ctx, callCtx) && errors.Is(r.err, context.DeadlineExceeded) {
			return Outcome[T]{Kind: OutcomeTimedOut}
		}
		return Outcome[T]{Kind: OutcomeFailed, Err: r.err}
	case <-callCtx.Done():
		if timedOut(ctx, callCtx) {
			return Outcome[T]{Kind: OutcomeTimedOut}
		}
		return Outcome[T]{Kind: OutcomeFailed, Err: context.Cause(ctx)}
	}
}

// timedOut reports whether callCtx hit its own deadline rather than being
// cancelled by the parent.
func timedOut(parent, callCtx context.Context) bool {
	return parent.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded)
}
