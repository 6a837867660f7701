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

// Degraded weather reports.
const (
	WeatherTimeoutReport = "⚠️ 天气服务响应超时 (跳过)"
	WeatherErrorReport   = "⚠️ 天气服务异常"
)

func (st *steps) weather(ctx flowgraph.Context, s State) (Update, error) {
	out := flowgraph.Call(ctx, st.d.Config.WeatherTimeout, func(c context.Context) (string, error) {
		return st.complete(c, prompt.Weather, map[string]any{"input": s.UserInput}, st.d.Tools)
	})

	var report string
	switch out.Kind {
	case flowgraph.OutcomeOK:
		report = out.Value
	case flowgraph.OutcomeTimedOut:
		report = WeatherTimeoutReport
	default:
		ctx.Logger().Warn("weather expert failed", "error", out.Err)
		report = WeatherErrorReport
	}
	ctx.Emit(event.Status("weather", "天气查询结束"))
	return Update{WeatherReport: ptr(report)}, nil
}

// FeedFailure is the summary recorded for a feed that could not be read.
func FeedFailure(url string) string {
	return fmt.Sprintf("读取 %s 失败", url)
}

// rss summarises every configured feed on a bounded pool. Summaries are
// appended in completion order; a failed feed contributes FeedFailure.
func (st *steps) rss(ctx flowgraph.Context, _ State) (Update, error) {
	feeds := st.d.Config.Feeds
	tasks := make([]flowgraph.Task[string], len(feeds))
	for i, url := range feeds {
		tasks[i] = func(c context.Context) (string, error) {
			out := flowgraph.Call(c, st.d.Config.FeedTimeout, func(c context.Context) (string, error) {
				return st.complete(c, prompt.Feed, map[string]any{"url": url}, st.d.Tools)
			})
			if !out.OK() {
				return FeedFailure(url), fmt.Errorf("feed %s: %s", url, out.Reason())
			}
			return out.Value, nil
		}
	}

	results := flowgraph.FanOut(ctx, st.d.Config.FanOutLimit, tasks)
	summaries := make([]string, 0, len(results))
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			ctx.Logger().Warn("feed summary failed", "url", feeds[r.Index], "error", r.Err)
			if r.Value == "" {
				r.Value = FeedFailure(feeds[r.Index])
			}
		}
		summaries = append(summaries, r.Value)
	}
	ctx.Logger().Info("feeds processed", "total", len(feeds), "failed", failed)
	ctx.Emit(event.Status("rss", fmt.Sprintf("已处理 %d 个订阅源", len(feeds))))
	return Update{RSSSummaries: summaries}, nil
}

// Report fallbacks.
const (
	WeatherUnavailable = "❌ 天气服务暂不可用"
	NoFeedData         = "\n> ⚠️ 未获取到 RSS 数据，请检查网络或源地址。\n"
)

// BuildReport renders the final markdown report. It always has content,
// whatever upstream steps produced.
func BuildReport(s State) string {
	weather := s.WeatherReport
	if strings.TrimSpace(weather) == "" {
		weather = WeatherUnavailable
	}

	var b strings.Builder
	b.WriteString("# 🤖 智能早报 (Agent Output)\n")
	b.WriteString("## 🌤️ 天气情况\n")
	b.WriteString(weather + "\n")
	fmt.Fprintf(&b, "## 📰 热点订阅 (%d 源)\n", len(s.RSSSummaries))

	if len(s.RSSSummaries) == 0 {
		b.WriteString(NoFeedData)
	} else {
		fmt.Fprintf(&b, "\n## 🤖 用户意图\n%s\n", s.UserIntent)
		for i, summary := range s.RSSSummaries {
			fmt.Fprintf(&b, "\n### 📌 来源 %d\n%s\n", i+1, summary)
		}
	}

	if strings.TrimSpace(s.Doc) != "" {
		title := s.DocTitle
		if title == "" {
			title = "文档"
		}
		fmt.Fprintf(&b, "\n## 📄 %s\n%s\n", title, s.Doc)
	}
	return b.String()
}

func (st *steps) aggregate(ctx flowgraph.Context, s State) (Update, error) {
	report := BuildReport(s)
	ctx.Logger().Info("report assembled",
		"weather_len", len(s.WeatherReport),
		"feeds", len(s.RSSSummaries),
		"doc_len", len(s.Doc))
	ctx.Emit(event.Result(report))
	return Update{
		FinalReport: ptr(report),
		Messages:    []llm.Message{assistantMessage("aggregator", report)},
	}, nil
}
