package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/lighthuangfu/agent-study/internal/prompt"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// Fallback intents.
const (
	DefaultIntent    = "用户未提供额外输入，执行默认的每日资讯早报任务。"
	UnparsedIntent   = "未能解析出清晰的用户意图。"
	intentFailPrefix = "意图理解失败："
	chatFallback     = "我没太理解你的意思。"
)

var (
	weatherKeywords = []string{"天气", "气温", "下雨", "温度"}
	rssKeywords     = []string{"rss", "新闻", "资讯", "头条", "热点"}
)

var taskPlans = map[string][]string{
	RouteWeather: {"我将进行天气查询计划", "1.加载天气查询软件", "2.查询天气", "3.汇总天气信息", "4.展示天气简报"},
	RouteRSS:     {"我将进行RSS订阅源抓取计划", "1.加载RSS订阅源抓取软件", "2.抓取RSS订阅源", "3.汇总RSS订阅源信息", "4.展示RSS订阅源简报"},
	RouteDoc:     {"我将进行文档查询计划", "1.加载文档查询软件", "2.根据系统知识库查询相关文档", "3.汇总文档信息", "4.展示文档详情"},
}

// TaskPlan returns the plan announced for a route. Unknown routes get the
// document plan, matching RouteIntent.
func TaskPlan(route string) []string {
	if plan, ok := taskPlans[route]; ok {
		return plan
	}
	return taskPlans[RouteDoc]
}

// ParseRoute splits a completion into its body and the ROUTE= label on the
// last non-empty line. ok is false when that line carries no label.
func ParseRoute(text string) (body, route string, ok bool) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > 0 {
		last := strings.TrimSpace(lines[len(lines)-1])
		if len(last) >= len("ROUTE=") && strings.EqualFold(last[:len("ROUTE=")], "ROUTE=") {
			route = strings.ToLower(strings.TrimSpace(last[len("ROUTE="):]))
			lines = lines[:len(lines)-1]
			ok = true
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), route, ok
}

// OverrideRoute corrects the model's route with keywords found in the
// input and the intent summary: weather-only or feed-only wording wins.
func OverrideRoute(route, input, intent string) string {
	text := strings.ToLower(input + "\n" + intent)
	hasWeather := containsAny(text, weatherKeywords)
	hasRSS := containsAny(text, rssKeywords)
	switch {
	case hasWeather && !hasRSS:
		return RouteWeather
	case hasRSS && !hasWeather:
		return RouteRSS
	}
	return route
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func (st *steps) complete(ctx context.Context, name prompt.Name, vars map[string]any, tools []llm.Tool) (string, error) {
	text, err := st.d.Prompts.Render(name, vars)
	if err != nil {
		return "", err
	}
	resp, err := st.d.LLM.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{llm.UserMessage(text)},
		Tools:    tools,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// chat is the optional pre-filter. Disabled, it passes every input on.
func (st *steps) chat(ctx flowgraph.Context, s State) (Update, error) {
	if !st.d.Config.ChatFilter {
		return Update{ChatRoute: ptr(ChatIntentExpert)}, nil
	}

	out := flowgraph.Call(ctx, st.d.Config.IntentTimeout, func(c context.Context) (string, error) {
		return st.complete(c, prompt.Chat, map[string]any{"input": s.UserInput}, nil)
	})
	if !out.OK() {
		ctx.Logger().Warn("chat filter failed", "reason", out.Reason())
		return Update{
			ChatRoute: ptr(ChatNone),
			Messages:  []llm.Message{assistantMessage("chat", chatFallback)},
		}, nil
	}

	reply, route, ok := ParseRoute(out.Value)
	if !ok {
		route = ChatIntentExpert
	}
	if reply == "" {
		reply = chatFallback
	}
	return Update{
		ChatRoute: ptr(route),
		Messages:  []llm.Message{assistantMessage("chat", reply)},
	}, nil
}

// intent summarises the request and picks the expert.
func (st *steps) intent(ctx flowgraph.Context, s State) (Update, error) {
	input := strings.TrimSpace(s.UserInput)

	var intentText, route string
	switch {
	case input == "":
		intentText, route = DefaultIntent, RouteNone
	default:
		out := flowgraph.Call(ctx, st.d.Config.IntentTimeout, func(c context.Context) (string, error) {
			return st.complete(c, prompt.Intent, map[string]any{"input": input}, nil)
		})
		if out.OK() {
			body, parsed, ok := ParseRoute(out.Value)
			intentText, route = body, parsed
			if !ok || route == "" {
				route = RouteNone
			}
			if intentText == "" {
				intentText = UnparsedIntent
			}
			route = OverrideRoute(route, input, intentText)
		} else {
			intentText = intentFailPrefix + out.Reason()
			route = RouteNone
			ctx.Logger().Warn("intent classification failed", "reason", out.Reason())
		}
	}

	plan := TaskPlan(RouteIntent(ctx, State{IntentRoute: route}))
	ctx.Emit(event.Intent(route, intentText, plan))
	ctx.Logger().Info("intent resolved", "route", route)

	return Update{
		UserIntent:  ptr(intentText),
		IntentRoute: ptr(route),
		TaskPlan:    ptr(plan),
	}, nil
}

func assistantMessage(name, content string) llm.Message {
	return llm.Message{Role: llm.RoleAssistant, Content: content, Name: name}
}

func elapsed(seconds float64) string {
	return fmt.Sprintf("%.1f秒", seconds)
}
