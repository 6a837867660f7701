package assistant

import (
	"strings"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
)

// Branch labels.
const (
	LabelRetry   = "retry"
	LabelDone    = "done"
	LabelRewrite = "rewrite"
)

// MaxDocRetries is the number of doc_retry executions allowed in one run.
const MaxDocRetries = 3

// RouteIntent sends weather and rss to their experts; every other value,
// including none and empty, goes to document generation.
func RouteIntent(_ flowgraph.Context, s State) string {
	switch strings.ToLower(strings.TrimSpace(s.IntentRoute)) {
	case RouteWeather:
		return RouteWeather
	case RouteRSS:
		return RouteRSS
	default:
		return RouteDoc
	}
}

// RouteChat collapses anything but intent_expert to none.
func RouteChat(_ flowgraph.Context, s State) string {
	if strings.TrimSpace(s.ChatRoute) == ChatIntentExpert {
		return ChatIntentExpert
	}
	return ChatNone
}

// RouteDocFirst runs right after the document step: only a timeout is
// retried, success and error both finish the sub-flow.
func RouteDocFirst(_ flowgraph.Context, s State) string {
	if s.DocStatus == DocTimeout {
		return LabelRetry
	}
	return LabelDone
}

// RouteDocAfterRetry runs after doc_retry: retry while the status is still
// timeout and fewer than MaxDocRetries retries happened.
func RouteDocAfterRetry(ctx flowgraph.Context, s State) string {
	return docAfterRetry(MaxDocRetries)(ctx, s)
}

func docAfterRetry(limit int) flowgraph.RouterFunc[State] {
	if limit <= 0 {
		limit = MaxDocRetries
	}
	return func(_ flowgraph.Context, s State) string {
		if s.DocStatus == DocTimeout && s.DocRetryCount < limit {
			return LabelRetry
		}
		return LabelDone
	}
}

// RouteRewrite ends the rewrite cycle on an empty instruction or a done
// sentinel and otherwise asks for another rewrite.
func RouteRewrite(_ flowgraph.Context, s State) string {
	if IsDoneInstruction(s.RewriteInstruction) {
		return LabelDone
	}
	return LabelRewrite
}

// IsDoneInstruction reports whether instruction closes the rewrite cycle:
// empty, "done" (any case) or "完成".
func IsDoneInstruction(instruction string) bool {
	switch strings.ToLower(strings.TrimSpace(instruction)) {
	case "", "done", "完成":
		return true
	}
	return false
}
