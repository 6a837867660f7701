package flowgraph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work submitted to FanOut.
type Task[T any] func(ctx context.Context) (T, error)

// TaskResult pairs a task's submission index with its result.
type TaskResult[T any] struct {
	Index int
	Value T
	Err   error
}

// FanOut runs tasks on at most limit goroutines (limit <= 0 means one per
// task) and returns once all of them finished. Results are ordered by
// completion, not submission. A failing or panicking task never cancels
// the others; its error is reported in its TaskResult.
func FanOut[T any](ctx context.Context, limit int, tasks []Task[T]) []TaskResult[T] {
	if len(tasks) == 0 {
		return nil
	}

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}

	results := make(chan TaskResult[T], len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			results <- runTask(ctx, i, task)
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	out := make([]TaskResult[T], 0, len(tasks))
	for r := range results {
		out = append(out, r)
	}
	return out
}

func runTask[T any](ctx context.Context, index int, task Task[T]) (r TaskResult[T]) {
	r.Index = index
	defer func() {
		if p := recover(); p != nil {
			r.Err = fmt.Errorf("task %d panicked: %v", index, p)
		}
	}()
	r.Value, r.Err = task(ctx)
	return r
}
