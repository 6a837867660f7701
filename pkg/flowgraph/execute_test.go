package flowgraph

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCompile(t *testing.T, g *Graph[trail, step]) *CompiledGraph[trail, step] {
	t.Helper()
	compiled, err := g.Compile()
	require.NoError(t, err)
	return compiled
}

func TestRun_LinearFlow(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddNode("c", visit("c")).
		AddEdge("a", "b").
		AddEdge("b", "c").
		AddEdge("c", END).
		SetEntry("a"))

	result, err := compiled.Run(testCtx(), trail{})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.State.Path)
	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, 3, result.Steps)
	assert.False(t, result.Interrupted())
}

func TestRun_PartialUpdateLeavesOtherFields(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("note", func(ctx Context, s trail) (step, error) {
			return step{Note: ptr("written")}, nil
		}).
		SetEntry("note"))

	result, err := compiled.Run(testCtx(), trail{Path: []string{"seed"}, Count: 7, Route: "x"})

	require.NoError(t, err)
	assert.Equal(t, trail{Path: []string{"seed"}, Count: 7, Route: "x", Note: "written"}, result.State)
}

func TestRun_InitialStateNotMutated(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("a", visit("a")).
		SetEntry("a"))

	seed := trail{Path: make([]string, 1, 8)}
	seed.Path[0] = "seed"

	_, err := compiled.Run(testCtx(), seed)

	require.NoError(t, err)
	assert.Equal(t, []string{"seed"}, seed.Path)
	assert.Equal(t, "seed", seed.Path[:2][0])
	assert.Equal(t, "", seed.Path[:2][1])
}

func TestRun_ConditionalEdges(t *testing.T) {
	build := func() *CompiledGraph[trail, step] {
		return mustCompile(t, NewGraph[trail, step]().
			AddNode("start", visit("start")).
			AddNode("left", visit("left")).
			AddNode("right", visit("right")).
			AddConditionalEdges("start", byRoute, map[string]string{
				"left":  "left",
				"right": "right",
				"stop":  END,
			}).
			AddEdge("left", END).
			AddEdge("right", END).
			SetEntry("start"))
	}

	tests := []struct {
		route string
		want  []string
	}{
		{"left", []string{"start", "left"}},
		{"right", []string{"start", "right"}},
		{"stop", []string{"start"}},
	}

	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			result, err := build().Run(testCtx(), trail{Route: tt.route})
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.State.Path)
		})
	}
}

func TestRun_RouterSeesPostUpdateState(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("decide", func(ctx Context, s trail) (step, error) {
			return step{Route: ptr("b")}, nil
		}).
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddConditionalEdges("decide", byRoute, map[string]string{"a": "a", "b": "b"}).
		SetEntry("decide"))

	result, err := compiled.Run(testCtx(), trail{Route: "a"})

	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, result.State.Path)
}

func TestRun_BoundedLoop(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("work", counting("work")).
		AddConditionalEdges("work", func(ctx Context, s trail) string {
			if s.Count >= 5 {
				return "done"
			}
			return "again"
		}, map[string]string{"again": "work", "done": END}).
		SetEntry("work"))

	result, err := compiled.Run(testCtx(), trail{})

	require.NoError(t, err)
	assert.Equal(t, 5, result.State.Count)
	assert.Equal(t, 5, result.Steps)
}

func TestRun_NoImplicitIterationCap(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("work", counting("work")).
		AddConditionalEdges("work", func(ctx Context, s trail) string {
			if s.Count >= 5000 {
				return "done"
			}
			return "again"
		}, map[string]string{"again": "work", "done": END}).
		SetEntry("work"))

	result, err := compiled.Run(testCtx(), trail{}, WithRunLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	require.NoError(t, err)
	assert.Equal(t, 5000, result.State.Count)
}

func TestRun_MaxIterations(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("spin", counting("spin")).
		AddConditionalEdges("spin", func(ctx Context, s trail) string { return "again" },
			map[string]string{"again": "spin", "never": END}).
		SetEntry("spin"))

	result, err := compiled.Run(testCtx(), trail{}, WithMaxIterations(10))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMaxIterations)

	var maxErr *MaxIterationsError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, 10, maxErr.Max)
	assert.Equal(t, "spin", maxErr.LastNodeID)
	assert.Equal(t, 10, result.State.Count)
}

func TestRun_NodeError(t *testing.T) {
	sentinel := errors.New("connection failed")
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("a", visit("a")).
		AddNode("fail", failing(sentinel)).
		AddEdge("a", "fail").
		SetEntry("a"))

	result, err := compiled.Run(testCtx(), trail{})

	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)

	var nodeErr *NodeError
	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, "fail", nodeErr.NodeID)
	assert.Equal(t, "execute", nodeErr.Op)
	assert.Equal(t, []string{"a"}, result.State.Path, "state at the point of failure")
}

func TestRun_PanicRecovery(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("crash", panicking("unexpected nil")).
		SetEntry("crash"))

	_, err := compiled.Run(testCtx(), trail{})

	var panicErr *PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "crash", panicErr.NodeID)
	assert.Equal(t, "unexpected nil", panicErr.Value)
	assert.Contains(t, panicErr.Stack, "goroutine")
}

func TestRun_RouterUnknownLabel_Fatal(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("a", visit("a")).
		AddConditionalEdges("a", byRoute, map[string]string{"known": END}).
		SetEntry("a"))

	_, err := compiled.Run(testCtx(), trail{Route: "mystery"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEdgeNotFound)

	var routerErr *RouterError
	require.ErrorAs(t, err, &routerErr)
	assert.Equal(t, "a", routerErr.FromNode)
	assert.Equal(t, "mystery", routerErr.Label)
}

func TestRun_RouterEmptyLabel_Fatal(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("a", visit("a")).
		AddConditionalEdges("a", byRoute, map[string]string{"known": END}).
		SetEntry("a"))

	_, err := compiled.Run(testCtx(), trail{})

	assert.ErrorIs(t, err, ErrInvalidRouterResult)
}

func TestRun_CancellationBetweenNodes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("first", func(fctx Context, s trail) (step, error) {
			cancel()
			return step{Path: []string{"first"}}, nil
		}).
		AddNode("second", visit("second")).
		AddEdge("first", "second").
		SetEntry("first"))

	result, err := compiled.Run(NewContext(ctx), trail{})

	var cancelErr *CancellationError
	require.ErrorAs(t, err, &cancelErr)
	assert.Equal(t, "second", cancelErr.NodeID)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"first"}, result.State.Path)
}

func TestRun_NilContext(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().AddNode("a", visit("a")).SetEntry("a"))

	//nolint:staticcheck // nil context is the case under test
	_, err := compiled.Run(nil, trail{})

	assert.ErrorIs(t, err, ErrNilContext)
}

func TestRun_StoreWithoutSession(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().AddNode("a", visit("a")).SetEntry("a"))

	_, err := compiled.Run(testCtx(), trail{}, WithCheckpointStore(newStore(t)))

	assert.ErrorIs(t, err, ErrSessionRequired)
}

func TestRun_ContextReachesNodes(t *testing.T) {
	var gotRunID, gotNodeID string
	var gotLogger *slog.Logger

	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("probe", func(ctx Context, s trail) (step, error) {
			gotRunID = ctx.RunID()
			gotNodeID = ctx.NodeID()
			gotLogger = ctx.Logger()
			return step{}, nil
		}).
		SetEntry("probe"))

	_, err := compiled.Run(NewContext(context.Background(), WithContextRunID("run-42")), trail{})
	require.NoError(t, err)
	assert.Equal(t, "run-42", gotRunID)
	assert.Equal(t, "probe", gotNodeID)
	assert.NotNil(t, gotLogger)

	_, err = compiled.Run(testCtx(), trail{}, WithSession("thread-9"))
	require.NoError(t, err)
	assert.Equal(t, "thread-9", gotRunID, "the session becomes the run id")
}

func TestRun_EmitsEventsToObserver(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("talk", func(ctx Context, s trail) (step, error) {
			ctx.Emit(event.Chunk("talk", "hello"))
			return step{}, nil
		}).
		AddNode("quiet", visit("quiet")).
		AddEdge("talk", "quiet").
		SetEntry("talk"))

	sink := event.NewCollector()
	_, err := compiled.Run(testCtx(), trail{}, WithObserver(sink))
	require.NoError(t, err)

	events := sink.Events()
	require.Len(t, events, 3)
	assert.Equal(t, event.Chunk("talk", "hello"), events[0])
	assert.Equal(t, event.Status("talk", "completed"), events[1])
	assert.Equal(t, event.Status("quiet", "completed"), events[2])
}

func TestRun_ContextSinkIsDefault(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().AddNode("a", visit("a")).SetEntry("a"))

	sink := event.NewCollector()
	_, err := compiled.Run(NewContext(context.Background(), WithSink(sink)), trail{})
	require.NoError(t, err)

	assert.Len(t, sink.OfType(event.TypeStatus), 1)
}

func TestRun_LogsLifecycle(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("a", visit("a")).
		AddNode("b", visit("b")).
		AddEdge("a", "b").
		SetEntry("a"))

	_, err := compiled.Run(testCtx(), trail{}, WithRunLogger(logger))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "graph run starting")
	assert.Contains(t, out, "node completed")
	assert.Contains(t, out, "graph run completed")
	assert.Contains(t, out, "nodes_executed=2")
}

func TestRun_ConcurrentRunsShareCompiledGraph(t *testing.T) {
	compiled := mustCompile(t, NewGraph[trail, step]().
		AddNode("slow", func(ctx Context, s trail) (step, error) {
			time.Sleep(time.Millisecond)
			return step{Count: ptr(s.Count * 2)}, nil
		}).
		SetEntry("slow"))

	results := make(chan int, 20)
	for i := 0; i < 20; i++ {
		go func() {
			r, err := compiled.Run(testCtx(), trail{Count: i})
			if err != nil {
				results <- -1
				return
			}
			results <- r.State.Count - 2*i
		}()
	}
	for i := 0; i < 20; i++ {
		assert.Equal(t, 0, <-results)
	}
}
