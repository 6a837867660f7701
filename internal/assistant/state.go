// Package assistant wires the morning-briefing workflow: intent routing,
// the weather, feed and document experts, the bounded document retry loop,
// the human-in-the-loop rewrite cycle and the final report.
package assistant

import (
	"slices"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// Intent routes chosen by the intent step.
const (
	RouteWeather = "weather"
	RouteRSS     = "rss"
	RouteDoc     = "doc"
	RouteNone    = "none"
)

// Chat pre-filter routes.
const (
	ChatIntentExpert = "intent_expert"
	ChatNone         = "none"
)

// DocStatus is the outcome of the last document step.
type DocStatus string

// Document statuses.
const (
	DocRunning DocStatus = "running"
	DocSuccess DocStatus = "success"
	DocTimeout DocStatus = "timeout"
	DocError   DocStatus = "error"
)

// State is the shared state of one assistant session.
//
// Append fields: DocLogs, RSSSummaries, Messages. Every other field is
// replaced on write. SessionID and UserInput are set by the caller and have
// no counterpart in Update, so no step can change them.
type State struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	UserInput string `json:"user_input"`

	UserIntent  string   `json:"user_intent"`
	TaskPlan    []string `json:"task_plan"`
	IntentRoute string   `json:"intent_route"`
	ChatRoute   string   `json:"chat_route"`

	DocStatus     DocStatus `json:"doc_status"`
	DocRetryCount int       `json:"doc_retry_count"`
	DocLastError  string    `json:"doc_last_error"`
	DocLogs       []string  `json:"doc_logs"`

	Doc                string `json:"doc"`
	DocID              string `json:"doc_id"`
	DocTitle           string `json:"doc_title"`
	RewriteInstruction string `json:"rewrite_instruction"`

	WeatherReport string        `json:"weather_report"`
	RSSSummaries  []string      `json:"rss_summaries"`
	Messages      []llm.Message `json:"messages"`

	FinalReport string `json:"final_report"`
}

// NewState seeds a session: the user input plus empty defaults.
func NewState(sessionID, userID, input string) State {
	return State{
		SessionID: sessionID,
		UserID:    userID,
		UserInput: input,
		Messages:  []llm.Message{llm.UserMessage(input)},
	}
}

// Update is a partial State. Nil pointers and empty slices leave the
// field untouched.
type Update struct {
	UserIntent  *string
	TaskPlan    *[]string
	IntentRoute *string
	ChatRoute   *string

	DocStatus     *DocStatus
	DocRetryCount *int
	DocLastError  *string
	DocLogs       []string

	Doc                *string
	DocID              *string
	DocTitle           *string
	RewriteInstruction *string

	WeatherReport *string
	RSSSummaries  []string
	Messages      []llm.Message

	FinalReport *string
}

// Merge batches next after u: replace fields take next's value when set,
// append fields concatenate.
func (u Update) Merge(next Update) Update {
	u.UserIntent = pick(u.UserIntent, next.UserIntent)
	u.TaskPlan = pick(u.TaskPlan, next.TaskPlan)
	u.IntentRoute = pick(u.IntentRoute, next.IntentRoute)
	u.ChatRoute = pick(u.ChatRoute, next.ChatRoute)
	u.DocStatus = pick(u.DocStatus, next.DocStatus)
	u.DocRetryCount = pick(u.DocRetryCount, next.DocRetryCount)
	u.DocLastError = pick(u.DocLastError, next.DocLastError)
	u.Doc = pick(u.Doc, next.Doc)
	u.DocID = pick(u.DocID, next.DocID)
	u.DocTitle = pick(u.DocTitle, next.DocTitle)
	u.RewriteInstruction = pick(u.RewriteInstruction, next.RewriteInstruction)
	u.WeatherReport = pick(u.WeatherReport, next.WeatherReport)
	u.FinalReport = pick(u.FinalReport, next.FinalReport)

	u.DocLogs = concat(u.DocLogs, next.DocLogs)
	u.RSSSummaries = concat(u.RSSSummaries, next.RSSSummaries)
	u.Messages = concat(u.Messages, next.Messages)
	return u
}

// Apply returns s with u merged in. s is not modified.
func (s State) Apply(u Update) State {
	assign(&s.UserIntent, u.UserIntent)
	if u.TaskPlan != nil {
		s.TaskPlan = slices.Clone(*u.TaskPlan)
	}
	assign(&s.IntentRoute, u.IntentRoute)
	assign(&s.ChatRoute, u.ChatRoute)
	assign(&s.DocStatus, u.DocStatus)
	assign(&s.DocRetryCount, u.DocRetryCount)
	assign(&s.DocLastError, u.DocLastError)
	assign(&s.Doc, u.Doc)
	assign(&s.DocID, u.DocID)
	assign(&s.DocTitle, u.DocTitle)
	assign(&s.RewriteInstruction, u.RewriteInstruction)
	assign(&s.WeatherReport, u.WeatherReport)
	assign(&s.FinalReport, u.FinalReport)

	s.DocLogs = concat(s.DocLogs, u.DocLogs)
	s.RSSSummaries = concat(s.RSSSummaries, u.RSSSummaries)
	s.Messages = concat(s.Messages, u.Messages)
	return s
}

func ptr[T any](v T) *T { return &v }

func pick[T any](cur, next *T) *T {
	if next != nil {
		return next
	}
	return cur
}

func assign[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// concat never aliases either input.
func concat[T any](a, b []T) []T {
	if len(b) == 0 {
		return a
	}
	out := make([]T, 0, len(a)+len(b))
	return append(append(out, a...), b...)
}
