package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Defaults for the OpenAI-compatible client. The base URL and model point
// at the Doubao (Volcengine Ark) endpoint.
const (
	DefaultBaseURL           = "https://ark.cn-beijing.volces.com/api/v3"
	DefaultModel             = "doubao-seed-1-6-250615"
	DefaultTemperature       = 0.1
	DefaultMaxToolIterations = 10
)

// OpenAIClient implements Client against any OpenAI-compatible chat
// completions endpoint using go-openai.
//
// Tool calls are executed in a loop: the assistant message and one tool
// message per call are appended to the conversation and the model is
// asked again, until it answers without tool calls. A model that still
// asks for tools after the iteration limit fails with ErrToolLoopExhausted.
type OpenAIClient struct {
	api               *openai.Client
	model             string
	temperature       float64
	maxToolIterations int
	logger            *slog.Logger
}

type openAIConfig struct {
	baseURL           string
	httpClient        *http.Client
	model             string
	temperature       float64
	maxToolIterations int
	logger            *slog.Logger
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*openAIConfig)

// WithBaseURL overrides the API base URL, e.g. "http://localhost:8000/v1".
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithModel sets the default model.
func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(t float64) OpenAIOption {
	return func(c *openAIConfig) {
		c.temperature = t
	}
}

// WithMaxToolIterations bounds the tool loop.
func WithMaxToolIterations(n int) OpenAIOption {
	return func(c *openAIConfig) {
		if n > 0 {
			c.maxToolIterations = n
		}
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openAIConfig) {
		c.httpClient = client
	}
}

// WithLogger sets the logger used for tool loop diagnostics.
func WithLogger(logger *slog.Logger) OpenAIOption {
	return func(c *openAIConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint.
func NewOpenAIClient(apiKey string, opts ...OpenAIOption) *OpenAIClient {
	cfg := openAIConfig{
		baseURL:           DefaultBaseURL,
		model:             DefaultModel,
		temperature:       DefaultTemperature,
		maxToolIterations: DefaultMaxToolIterations,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	apiCfg := openai.DefaultConfig(apiKey)
	apiCfg.BaseURL = cfg.baseURL
	if cfg.httpClient != nil {
		apiCfg.HTTPClient = cfg.httpClient
	}

	return &OpenAIClient{
		api:               openai.NewClientWithConfig(apiCfg),
		model:             cfg.model,
		temperature:       cfg.temperature,
		maxToolIterations: cfg.maxToolIterations,
		logger:            cfg.logger,
	}
}

// Model returns the default model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()
	apiReq := c.buildRequest(req)
	tools := NewToolset(req.Tools...)
	out := &CompletionResponse{}

	for i := 0; i < c.maxToolIterations; i++ {
		resp, err := c.api.CreateChatCompletion(ctx, apiReq)
		if err != nil {
			return nil, wrapAPIError("complete", err)
		}
		if len(resp.Choices) == 0 {
			return nil, NewError("complete", ErrNoChoices, false)
		}

		out.Usage.Add(usageFrom(resp.Usage))
		out.Model = resp.Model

		choice := resp.Choices[0]
		out.Content = choice.Message.Content
		out.FinishReason = string(choice.FinishReason)

		if len(choice.Message.ToolCalls) == 0 {
			out.Duration = time.Since(start)
			return out, nil
		}
		if i+1 >= c.maxToolIterations {
			break
		}

		msgs, invocations := c.runTools(ctx, tools, choice.Message)
		apiReq.Messages = append(apiReq.Messages, msgs...)
		out.ToolInvocations = append(out.ToolInvocations, invocations...)
	}

	return nil, c.loopExhausted("complete", len(out.ToolInvocations))
}

func (c *OpenAIClient) loopExhausted(op string, toolCalls int) error {
	c.logger.Warn("tool loop reached iteration limit",
		"limit", c.maxToolIterations,
		"tool_calls", toolCalls)
	return NewError(op, fmt.Errorf("%w (%d iterations)", ErrToolLoopExhausted, c.maxToolIterations), false)
}

// Stream implements Client. Content deltas are forwarded as they arrive;
// tool calls are accumulated from the deltas, executed, and the
// conversation continues on a new stream.
func (c *OpenAIClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	apiReq := c.buildRequest(req)
	apiReq.Stream = true
	apiReq.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

	first, err := c.api.CreateChatCompletionStream(ctx, apiReq)
	if err != nil {
		return nil, wrapAPIError("stream", err)
	}

	ch := make(chan StreamChunk, 16)
	go c.pump(ctx, first, apiReq, NewToolset(req.Tools...), ch)
	return ch, nil
}

func (c *OpenAIClient) pump(ctx context.Context, stream *openai.ChatCompletionStream, apiReq openai.ChatCompletionRequest, tools *Toolset, ch chan<- StreamChunk) {
	defer close(ch)

	send := func(chunk StreamChunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var usage TokenUsage
	var invocations []ToolInvocation

	for i := 0; ; i++ {
		msg, turnUsage, err := c.drain(stream, send)
		stream.Close()
		if err != nil {
			send(StreamChunk{Error: wrapAPIError("stream", err), Done: true})
			return
		}
		usage.Add(turnUsage)

		if len(msg.ToolCalls) == 0 {
			send(StreamChunk{Done: true, Usage: &usage, ToolInvocations: invocations})
			return
		}
		if i+1 >= c.maxToolIterations {
			send(StreamChunk{Error: c.loopExhausted("stream", len(invocations)), Done: true})
			return
		}

		msgs, ran := c.runTools(ctx, tools, msg)
		apiReq.Messages = append(apiReq.Messages, msgs...)
		invocations = append(invocations, ran...)

		stream, err = c.api.CreateChatCompletionStream(ctx, apiReq)
		if err != nil {
			send(StreamChunk{Error: wrapAPIError("stream", err), Done: true})
			return
		}
	}
}

// drain reads one streamed turn and reassembles the assistant message.
func (c *OpenAIClient) drain(stream *openai.ChatCompletionStream, send func(StreamChunk) bool) (openai.ChatCompletionMessage, TokenUsage, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
	var usage TokenUsage
	calls := map[int]*openai.ToolCall{}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return msg, usage, err
		}
		if resp.Usage != nil {
			usage = usageFrom(*resp.Usage)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			msg.Content += delta.Content
			if !send(StreamChunk{Content: delta.Content}) {
				return msg, usage, context.Canceled
			}
		}
		for pos, tc := range delta.ToolCalls {
			idx := pos
			if tc.Index != nil {
				idx = *tc.Index
			}
			acc, ok := calls[idx]
			if !ok {
				acc = &openai.ToolCall{Type: openai.ToolTypeFunction}
				calls[idx] = acc
			}
			if tc.ID != "" {
				acc.ID = tc.ID
			}
			if tc.Function.Name != "" {
				acc.Function.Name = tc.Function.Name
			}
			acc.Function.Arguments += tc.Function.Arguments
		}
	}

	indexes := make([]int, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)
	for _, idx := range indexes {
		msg.ToolCalls = append(msg.ToolCalls, *calls[idx])
	}
	return msg, usage, nil
}

// runTools executes the tool calls of an assistant message and returns the
// messages to append: the assistant message followed by one tool message
// per call.
func (c *OpenAIClient) runTools(ctx context.Context, tools *Toolset, assistant openai.ChatCompletionMessage) ([]openai.ChatCompletionMessage, []ToolInvocation) {
	msgs := make([]openai.ChatCompletionMessage, 0, len(assistant.ToolCalls)+1)
	msgs = append(msgs, assistant)
	invocations := make([]ToolInvocation, 0, len(assistant.ToolCalls))

	for _, call := range assistant.ToolCalls {
		args := json.RawMessage(call.Function.Arguments)
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		inv := ToolInvocation{ToolCall: ToolCall{ID: call.ID, Name: call.Function.Name, Arguments: args}}

		tool, ok := tools.Lookup(call.Function.Name)
		if !ok {
			inv.Err = fmt.Errorf("unknown tool %q", call.Function.Name)
		} else {
			inv.Result, inv.Err = tool.Call(ctx, args)
		}

		content := inv.Result
		if inv.Err != nil {
			c.logger.Warn("tool call failed", "tool", inv.Name, "error", inv.Err)
			content = "error: " + inv.Err.Error()
		}

		invocations = append(invocations, inv)
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    content,
			Name:       call.Function.Name,
			ToolCallID: call.ID,
		})
	}
	return msgs, invocations
}

func (c *OpenAIClient) buildRequest(req CompletionRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
			Name:    m.Name,
		})
	}

	apiReq := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(temperature),
	}
	for _, t := range req.Tools {
		def := t.Definition()
		params := def.Parameters
		apiReq.Tools = append(apiReq.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  &params,
			},
		})
	}
	return apiReq
}

func usageFrom(u openai.Usage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
}
