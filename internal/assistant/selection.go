package assistant

import (
	"context"
	"errors"
	"strings"

	"github.com/lighthuangfu/agent-study/internal/prompt"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
)

// NodeSelection is the single step of the selection graph.
const NodeSelection = "rewrite_selection"

// ErrEmptySelection rejects a selection rewrite without text.
var ErrEmptySelection = errors.New("选中内容不能为空")

// SelectionState is the state of a selection rewrite: the selected text,
// an optional hint and the surrounding draft.
type SelectionState struct {
	Text   string `json:"text"`
	Hint   string `json:"hint"`
	Doc    string `json:"doc"`
	Result string `json:"result"`
}

// SelectionUpdate sets the rewritten text.
type SelectionUpdate struct {
	Result *string
}

// Merge implements flowgraph.Update.
func (u SelectionUpdate) Merge(next SelectionUpdate) SelectionUpdate {
	u.Result = pick(u.Result, next.Result)
	return u
}

// Apply implements flowgraph.State.
func (s SelectionState) Apply(u SelectionUpdate) SelectionState {
	assign(&s.Result, u.Result)
	return s
}

// SelectionPromptVars builds the selection prompt variables. The draft, when
// present, is quoted as context ahead of the selected text.
func SelectionPromptVars(s SelectionState) map[string]any {
	docBlock := "\n【原文：】\n"
	if doc := strings.TrimSpace(s.Doc); doc != "" {
		docBlock = "\n\n【完整文档上下文：】\n" + doc + "\n\n【用户选中的原文：】\n"
	}
	hintBlock := ""
	if hint := strings.TrimSpace(s.Hint); hint != "" {
		hintBlock = "\n用户补充要求/续写意图：" + hint
	}
	return map[string]any{
		"doc_block":  docBlock,
		"text":       strings.TrimSpace(s.Text),
		"hint_block": hintBlock,
	}
}

func (st *steps) rewriteSelection(ctx flowgraph.Context, s SelectionState) (SelectionUpdate, error) {
	if strings.TrimSpace(s.Text) == "" {
		return SelectionUpdate{Result: ptr("")}, nil
	}
	out := flowgraph.Call(ctx, st.d.Config.RewriteTimeout, func(c context.Context) (string, error) {
		return st.streamText(ctx, c, NodeSelection, prompt.Selection, SelectionPromptVars(s))
	})
	switch out.Kind {
	case flowgraph.OutcomeOK:
		return SelectionUpdate{Result: ptr(out.Value)}, nil
	case flowgraph.OutcomeTimedOut:
		return SelectionUpdate{}, errors.New("改写超时")
	default:
		return SelectionUpdate{}, out.Err
	}
}

func buildSelectionGraph(st *steps) (*flowgraph.CompiledGraph[SelectionState, SelectionUpdate], error) {
	return flowgraph.NewGraph[SelectionState, SelectionUpdate]().
		AddNode(NodeSelection, st.rewriteSelection).
		AddEdge(NodeSelection, flowgraph.END).
		SetEntry(NodeSelection).
		Compile()
}
