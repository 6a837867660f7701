package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lighthuangfu/agent-study/internal/assistant"
	"github.com/lighthuangfu/agent-study/internal/config"
	"github.com/lighthuangfu/agent-study/internal/logging"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/checkpoint"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/event"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// scripted answers by prompt marker: the intent prompt routes on the user
// input, the rest return fixed text.
func scripted() *llm.MockClient {
	return llm.NewMockClient("").WithCompleteFunc(func(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
		prompt := req.Messages[len(req.Messages)-1].Content
		var out string
		switch {
		case strings.Contains(prompt, "任务规划助手"):
			out = "用户想要一份文档\nROUTE=doc"
		case strings.Contains(prompt, "天气助手"):
			out = "北京 晴 25°C"
		case strings.Contains(prompt, "高级分析师助手"):
			out = "# 草稿\n正文"
		case strings.Contains(prompt, "资深编辑"):
			out = "# 改写稿\n新正文"
		case strings.Contains(prompt, "请对以下内容进行改写"):
			out = "改写后的片段"
		default:
			return nil, errors.New("unscripted prompt")
		}
		return &llm.CompletionResponse{Content: out}, nil
	})
}

func newTestServer(t *testing.T, cfg config.ServerConfig) *httptest.Server {
	t.Helper()
	wf := config.Default().Workflow
	wf.DocTimeout = 5 * time.Second

	a, err := assistant.New(assistant.Deps{LLM: scripted(), Config: wf, Logger: logging.NewNop()})
	require.NoError(t, err)
	svc := assistant.NewService(a, checkpoint.NewMemoryStore(), assistant.WithServiceLogger(logging.NewNop()))

	ts := httptest.NewServer(New(svc, cfg, logging.NewNop()).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readEvents(t *testing.T, resp *http.Response) []event.Event {
	t.Helper()
	var events []event.Event
	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e event.Event
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e))
		events = append(events, e)
	}
	require.NoError(t, sc.Err())
	return events
}

func ofType(events []event.Event, typ event.Type) []event.Event {
	var out []event.Event
	for _, e := range events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", decodeJSON(t, resp)["status"])
}

func TestRunTask_WeatherStreamsResult(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	resp := post(t, ts, "/run-task", `{"user_id":"u1","user_input":"今天天气怎么样"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
	assert.Equal(t, "no", resp.Header.Get("X-Accel-Buffering"))

	events := readEvents(t, resp)
	intents := ofType(events, event.TypeIntent)
	require.Len(t, intents, 1)
	assert.Equal(t, assistant.RouteWeather, intents[0].Route)

	results := ofType(events, event.TypeResult)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "北京 晴 25°C")
	assert.Empty(t, ofType(events, event.TypeInterrupt))
}

func TestRewriteLoopOverHTTP(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	events := readEvents(t, post(t, ts, "/run-task", `{"user_id":"u2","user_input":"写一份行业报告"}`))
	interrupts := ofType(events, event.TypeInterrupt)
	require.Len(t, interrupts, 1)
	assert.Equal(t, "# 草稿\n正文", interrupts[0].Doc)
	assert.NotEmpty(t, ofType(events, event.TypeChunk))

	resp, err := http.Get(ts.URL + "/sessions/u2")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeJSON(t, resp)
	assert.Equal(t, assistant.NodeDocFlow, snap["interrupted_at"])

	events = readEvents(t, post(t, ts, "/doc-rewrite-and-continue", `{"thread_id":"u2","rewrite_instruction":"更正式"}`))
	interrupts = ofType(events, event.TypeInterrupt)
	require.Len(t, interrupts, 1)
	assert.Equal(t, "# 改写稿\n新正文", interrupts[0].Doc)

	events = readEvents(t, post(t, ts, "/doc-rewrite-and-continue", `{"thread_id":"u2","rewrite_instruction":"done"}`))
	results := ofType(events, event.TypeResult)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "## 📄 改写稿")

	resp2 := post(t, ts, "/doc-rewrite-and-continue", `{"thread_id":"u2","rewrite_instruction":"再改"}`)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	assert.Contains(t, decodeJSON(t, resp2)["error"], "没有待继续的文档任务")
}

func TestContinue_Validation(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	resp := post(t, ts, "/doc-rewrite-and-continue", `{"rewrite_instruction":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts, "/run-task", `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSession_NotFound(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})
	resp, err := http.Get(ts.URL + "/sessions/nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRewriteSelection(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	events := readEvents(t, post(t, ts, "/rewrite-selection", `{"text":"原片段","hint":"更简洁"}`))
	assert.NotEmpty(t, ofType(events, event.TypeChunk))
	done := ofType(events, event.TypeDone)
	require.Len(t, done, 1)
	assert.Equal(t, "改写后的片段", done[0].Result)

	events = readEvents(t, post(t, ts, "/rewrite-selection", `{"text":"  "}`))
	require.Len(t, events, 1)
	assert.Equal(t, event.TypeError, events[0].Type)
	assert.Equal(t, "选中内容不能为空", events[0].Message)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{RateLimit: 0.001, Burst: 1})

	first := post(t, ts, "/rewrite-selection", `{"text":"a"}`)
	_, _ = io.Copy(io.Discard, first.Body)
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := post(t, ts, "/rewrite-selection", `{"text":"a"}`)
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)

	// health checks are never limited
	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t, config.ServerConfig{})

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `assistant_http_requests_total{method="GET",route="/",status="200"} 1`)
	assert.Contains(t, string(body), "assistant_http_request_duration_seconds")
}

func TestIPLimiter_SweepsIdleVisitors(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	now = now.Add(visitorTTL + 2*time.Minute)
	assert.True(t, l.allow("b"))
	l.mu.Lock()
	_, kept := l.visitors["a"]
	l.mu.Unlock()
	assert.False(t, kept)

	assert.Nil(t, newIPLimiter(0, 10))
}
