package llm

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// Tool is a function the model may call during a completion.
type Tool interface {
	// Definition describes the tool to the model.
	Definition() ToolDefinition
	// Call executes the tool with the model-provided JSON arguments.
	Call(ctx context.Context, args json.RawMessage) (string, error)
}

// ToolDefinition is the name, description and JSON schema of a tool.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
}

// ToolFunc adapts a plain function into a Tool.
type ToolFunc struct {
	Def ToolDefinition
	Fn  func(ctx context.Context, args json.RawMessage) (string, error)
}

// NewTool creates a Tool from a definition and a function.
func NewTool(def ToolDefinition, fn func(ctx context.Context, args json.RawMessage) (string, error)) ToolFunc {
	return ToolFunc{Def: def, Fn: fn}
}

// Definition implements Tool.
func (t ToolFunc) Definition() ToolDefinition { return t.Def }

// Call implements Tool.
func (t ToolFunc) Call(ctx context.Context, args json.RawMessage) (string, error) {
	return t.Fn(ctx, args)
}

// Toolset indexes tools by name.
type Toolset struct {
	byName map[string]Tool
}

// NewToolset builds a Toolset. Later tools win on duplicate names.
func NewToolset(tools ...Tool) *Toolset {
	ts := &Toolset{byName: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		ts.byName[t.Definition().Name] = t
	}
	return ts
}

// Lookup returns the tool with the given name.
func (ts *Toolset) Lookup(name string) (Tool, bool) {
	t, ok := ts.byName[name]
	return t, ok
}

// Names returns the tool names, sorted.
func (ts *Toolset) Names() []string {
	names := make([]string, 0, len(ts.byName))
	for name := range ts.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of tools.
func (ts *Toolset) Len() int {
	return len(ts.byName)
}
