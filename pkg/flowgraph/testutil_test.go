package flowgraph

import (
	"context"
	"slices"
)

// trail is the state used across engine tests.
type trail struct {
	Path  []string `json:"path"`
	Count int      `json:"count"`
	Route string   `json:"route"`
	Note  string   `json:"note"`
}

// step is trail's partial update: Path appends, the rest replace.
type step struct {
	Path  []string
	Count *int
	Route *string
	Note  *string
}

func (u step) Merge(next step) step {
	u.Path = append(slices.Clone(u.Path), next.Path...)
	if next.Count != nil {
		u.Count = next.Count
	}
	if next.Route != nil {
		u.Route = next.Route
	}
	if next.Note != nil {
		u.Note = next.Note
	}
	return u
}

func (s trail) Apply(u step) trail {
	if len(u.Path) > 0 {
		s.Path = append(slices.Clone(s.Path), u.Path...)
	}
	if u.Count != nil {
		s.Count = *u.Count
	}
	if u.Route != nil {
		s.Route = *u.Route
	}
	if u.Note != nil {
		s.Note = *u.Note
	}
	return s
}

func ptr[T any](v T) *T { return &v }

// visit records its own name on the path.
func visit(name string) NodeFunc[trail, step] {
	return func(ctx Context, s trail) (step, error) {
		return step{Path: []string{name}}, nil
	}
}

// counting records its name and increments Count.
func counting(name string) NodeFunc[trail, step] {
	return func(ctx Context, s trail) (step, error) {
		return step{Path: []string{name}, Count: ptr(s.Count + 1)}, nil
	}
}

func failing(err error) NodeFunc[trail, step] {
	return func(ctx Context, s trail) (step, error) {
		return step{}, err
	}
}

func panicking(value any) NodeFunc[trail, step] {
	return func(ctx Context, s trail) (step, error) {
		panic(value)
	}
}

// byRoute routes on the state's Route field.
func byRoute(ctx Context, s trail) string {
	return s.Route
}

func testCtx() Context {
	return NewContext(context.Background())
}
