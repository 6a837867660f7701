package assistant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph"
)

func TestRouteIntent(t *testing.T) {
	ctx := flowgraph.NewContext(context.Background())
	tests := []struct {
		route string
		want  string
	}{
		{"weather", RouteWeather},
		{" Weather ", RouteWeather},
		{"rss", RouteRSS},
		{"doc", RouteDoc},
		{"none", RouteDoc},
		{"", RouteDoc},
		{"ROUTE=weather", RouteDoc},
		{"新闻", RouteDoc},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.want, RouteIntent(ctx, State{IntentRoute: tt.route}))
		})
	}
}

func TestRouteChat(t *testing.T) {
	ctx := flowgraph.NewContext(context.Background())
	assert.Equal(t, ChatIntentExpert, RouteChat(ctx, State{ChatRoute: ChatIntentExpert}))
	assert.Equal(t, ChatNone, RouteChat(ctx, State{ChatRoute: "none"}))
	assert.Equal(t, ChatNone, RouteChat(ctx, State{ChatRoute: "garbage"}))
	assert.Equal(t, ChatNone, RouteChat(ctx, State{}))
}

func TestDocRouters(t *testing.T) {
	ctx := flowgraph.NewContext(context.Background())

	assert.Equal(t, LabelRetry, RouteDocFirst(ctx, State{DocStatus: DocTimeout}))
	assert.Equal(t, LabelDone, RouteDocFirst(ctx, State{DocStatus: DocSuccess}))
	assert.Equal(t, LabelDone, RouteDocFirst(ctx, State{DocStatus: DocError}))

	for count := 0; count < MaxDocRetries; count++ {
		assert.Equal(t, LabelRetry, RouteDocAfterRetry(ctx, State{DocStatus: DocTimeout, DocRetryCount: count}))
	}
	assert.Equal(t, LabelDone, RouteDocAfterRetry(ctx, State{DocStatus: DocTimeout, DocRetryCount: MaxDocRetries}))
	assert.Equal(t, LabelDone, RouteDocAfterRetry(ctx, State{DocStatus: DocError, DocRetryCount: 0}))
	assert.Equal(t, LabelDone, RouteDocAfterRetry(ctx, State{DocStatus: DocSuccess, DocRetryCount: 1}))

	custom := docAfterRetry(1)
	assert.Equal(t, LabelRetry, custom(ctx, State{DocStatus: DocTimeout}))
	assert.Equal(t, LabelDone, custom(ctx, State{DocStatus: DocTimeout, DocRetryCount: 1}))
}

func TestRouteRewrite(t *testing.T) {
	ctx := flowgraph.NewContext(context.Background())
	for _, done := range []string{"", "  ", "done", "DONE", " Done ", "完成"} {
		assert.Equal(t, LabelDone, RouteRewrite(ctx, State{RewriteInstruction: done}), "%q", done)
	}
	assert.Equal(t, LabelRewrite, RouteRewrite(ctx, State{RewriteInstruction: "更正式一些"}))
	assert.Equal(t, LabelRewrite, RouteRewrite(ctx, State{RewriteInstruction: "done already?"}))
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantBody  string
		wantRoute string
		wantOK    bool
	}{
		{"label last", "看天气\nROUTE=weather", "看天气", "weather", true},
		{"case and space", "新闻\n\n  route= RSS  \n", "新闻", "rss", true},
		{"no label", "只是一句话", "只是一句话", "", false},
		{"label not last", "ROUTE=rss\n后面还有话", "ROUTE=rss\n后面还有话", "", false},
		{"empty", "", "", "", false},
		{"label only", "ROUTE=doc", "", "doc", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, route, ok := ParseRoute(tt.text)
			assert.Equal(t, tt.wantBody, body)
			assert.Equal(t, tt.wantRoute, route)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

func TestOverrideRoute(t *testing.T) {
	assert.Equal(t, RouteWeather, OverrideRoute(RouteDoc, "明天会下雨吗", ""))
	assert.Equal(t, RouteRSS, OverrideRoute(RouteWeather, "来点RSS", ""))
	assert.Equal(t, RouteRSS, OverrideRoute(RouteDoc, "", "用户想看热点"))
	assert.Equal(t, RouteDoc, OverrideRoute(RouteDoc, "天气和新闻都要", ""))
	assert.Equal(t, RouteNone, OverrideRoute(RouteNone, "写一份报告", ""))
}

func TestTaskPlan(t *testing.T) {
	assert.Equal(t, "我将进行天气查询计划", TaskPlan(RouteWeather)[0])
	assert.Equal(t, TaskPlan(RouteDoc), TaskPlan("unknown"))
	assert.Len(t, TaskPlan(RouteRSS), 5)
}
