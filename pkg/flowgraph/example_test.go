package flowgraph_test

import (
	"context"
	"fmt"
	"log"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/checkpoint"
)

type draft struct {
	Attempts    int    `json:"attempts"`
	Text        string `json:"text"`
	Instruction string `json:"instruction"`
}

type draftUpdate struct {
	Attempts    *int
	Text        *string
	Instruction *string
}

func (u draftUpdate) Merge(next draftUpdate) draftUpdate {
	if next.Attempts != nil {
		u.Attempts = next.Attempts
	}
	if next.Text != nil {
		u.Text = next.Text
	}
	if next.Instruction != nil {
		u.Instruction = next.Instruction
	}
	return u
}

func (s draft) Apply(u draftUpdate) draft {
	if u.Attempts != nil {
		s.Attempts = *u.Attempts
	}
	if u.Text != nil {
		s.Text = *u.Text
	}
	if u.Instruction != nil {
		s.Instruction = *u.Instruction
	}
	return s
}

func ref[T any](v T) *T { return &v }

// A router that sends a node back to itself builds a bounded retry loop.
func ExampleGraph_AddConditionalEdges() {
	attempt := func(ctx flowgraph.Context, s draft) (draftUpdate, error) {
		return draftUpdate{Attempts: ref(s.Attempts + 1)}, nil
	}
	again := func(ctx flowgraph.Context, s draft) string {
		if s.Attempts < 3 {
			return "retry"
		}
		return "done"
	}

	compiled, err := flowgraph.NewGraph[draft, draftUpdate]().
		AddNode("attempt", attempt).
		AddConditionalEdges("attempt", again, map[string]string{
			"retry": "attempt",
			"done":  flowgraph.END,
		}).
		SetEntry("attempt").
		Compile()
	if err != nil {
		log.Fatal(err)
	}

	result, err := compiled.Run(flowgraph.NewContext(context.Background()), draft{})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(result.Status, result.State.Attempts)
	// Output: completed 3
}

// An interrupt point pauses the run after its node; Resume applies an
// update and follows the node's edges from there.
func ExampleCompiledGraph_Resume() {
	write := func(ctx flowgraph.Context, s draft) (draftUpdate, error) {
		return draftUpdate{Text: ref("v1")}, nil
	}
	revise := func(ctx flowgraph.Context, s draft) (draftUpdate, error) {
		return draftUpdate{
			Text:        ref(s.Text + " (" + s.Instruction + ")"),
			Instruction: ref(""),
		}, nil
	}
	next := func(ctx flowgraph.Context, s draft) string {
		if s.Instruction == "" || s.Instruction == "done" {
			return "done"
		}
		return "revise"
	}
	table := map[string]string{"revise": "revise", "done": flowgraph.END}

	compiled, err := flowgraph.NewGraph[draft, draftUpdate]().
		AddNode("write", write).
		AddNode("revise", revise).
		AddConditionalEdges("write", next, table).
		AddConditionalEdges("revise", next, table).
		InterruptAfter("write", "revise").
		SetEntry("write").
		Compile()
	if err != nil {
		log.Fatal(err)
	}

	ctx := flowgraph.NewContext(context.Background())
	store := checkpoint.NewMemoryStore()
	opts := []flowgraph.RunOption{flowgraph.WithCheckpointStore(store)}

	result, err := compiled.Run(ctx, draft{}, append(opts, flowgraph.WithSession("s1"))...)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("paused at %s: %s\n", result.InterruptedAt, result.State.Text)

	result, err = compiled.Resume(ctx, "s1", draftUpdate{Instruction: ref("shorter")}, opts...)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("paused at %s: %s\n", result.InterruptedAt, result.State.Text)

	result, err = compiled.Resume(ctx, "s1", draftUpdate{Instruction: ref("done")}, opts...)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s: %s\n", result.Status, result.State.Text)

	pending, _ := compiled.Pending(store, "s1")
	fmt.Println("pending:", pending)
	// Output:
	// paused at write: v1
	// paused at revise: v1 (shorter)
	// completed: v1 (shorter)
	// pending: false
}

// FanOut returns results in completion order; sort by Index when the
// submission order matters.
func ExampleFanOut() {
	tasks := []flowgraph.Task[int]{
		func(ctx context.Context) (int, error) { return 1, nil },
		func(ctx context.Context) (int, error) { return 0, fmt.Errorf("boom") },
		func(ctx context.Context) (int, error) { return 3, nil },
	}
	sum, failed := 0, 0
	for _, r := range flowgraph.FanOut(context.Background(), 2, tasks) {
		if r.Err != nil {
			failed++
			continue
		}
		sum += r.Value
	}
	fmt.Println(sum, failed)
	// Output: 4 1
}
