package llm

import (
	"context"
	"sync"
	"time"
)

// MockClient is a Client for tests. It returns canned responses, an
// error, or the result of a custom function, and records every request.
type MockClient struct {
	mu sync.Mutex

	responses    []string
	index        int
	err          error
	delay        time.Duration
	chunks       []string
	completeFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Calls holds every request received, in order.
	Calls []CompletionRequest
}

// NewMockClient returns a mock that always answers with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{responses: []string{response}}
}

// WithResponses makes the mock cycle through responses.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = responses
	m.index = 0
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithDelay makes every call wait d before answering, or until the
// context is done.
func (m *MockClient) WithDelay(d time.Duration) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithStreamChunks makes Stream deliver the given pieces instead of the
// whole response as one chunk.
func (m *MockClient) WithStreamChunks(chunks ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = chunks
	return m
}

// WithCompleteFunc delegates Complete to fn.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	delay, err, fn := m.delay, m.err, m.completeFunc
	content := m.next()
	m.mu.Unlock()

	if err := wait(ctx, delay); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, req)
	}
	return &CompletionResponse{
		Content:      content,
		Usage:        approximateUsage(req, content),
		Model:        "mock",
		FinishReason: "stop",
	}, nil
}

// Stream implements Client.
func (m *MockClient) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error) {
	m.mu.Lock()
	if m.err != nil {
		err := m.err
		m.mu.Unlock()
		return nil, err
	}
	chunks := m.chunks
	delay := m.delay
	m.mu.Unlock()

	var pieces []string
	var full string
	if len(chunks) > 0 {
		m.mu.Lock()
		m.Calls = append(m.Calls, req)
		m.mu.Unlock()
		pieces = chunks
		for _, c := range chunks {
			full += c
		}
	} else {
		resp, err := m.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		pieces = []string{resp.Content}
		full = resp.Content
		delay = 0
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		usage := approximateUsage(req, full)
		for i, piece := range pieces {
			if err := wait(ctx, delay); err != nil {
				return
			}
			chunk := StreamChunk{Content: piece}
			if i == len(pieces)-1 {
				chunk.Done = true
				chunk.Usage = &usage
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// CallCount returns the number of requests received.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	req := m.Calls[len(m.Calls)-1]
	return &req
}

// Reset clears recorded calls and rewinds the response cycle.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.index = 0
}

// next returns the next canned response. Caller holds m.mu.
func (m *MockClient) next() string {
	if len(m.responses) == 0 {
		return ""
	}
	r := m.responses[m.index%len(m.responses)]
	m.index++
	return r
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// approximateUsage estimates tokens at four characters per token.
func approximateUsage(req CompletionRequest, output string) TokenUsage {
	input := len(req.SystemPrompt)
	for _, msg := range req.Messages {
		input += len(msg.Content)
	}
	in := input/4 + 1
	out := len(output)/4 + 1
	return TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out}
}
