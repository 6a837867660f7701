package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

func TestCategoryString(t *testing.T) {
	tests := []struct {
		category Category
		expected string
	}{
		{CategoryTransient, "transient"},
		{CategoryPermanent, "permanent"},
		{CategoryInvalidInput, "invalid_input"},
		{Category(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.category.String(); got != tt.expected {
				t.Errorf("Category(%d).String() = %s, want %s", tt.category, got, tt.expected)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil error", nil, CategoryPermanent},
		{"HTTP 429", &HTTPError{StatusCode: 429}, CategoryTransient},
		{"HTTP 503", &HTTPError{StatusCode: 503}, CategoryTransient},
		{"HTTP 500", &HTTPError{StatusCode: 500}, CategoryTransient},
		{"HTTP 401", &HTTPError{StatusCode: 401}, CategoryPermanent},
		{"HTTP 404", &HTTPError{StatusCode: 404}, CategoryPermanent},
		{"HTTP 400", &HTTPError{StatusCode: 400}, CategoryInvalidInput},
		{"HTTP 422", &HTTPError{StatusCode: 422}, CategoryInvalidInput},
		{"wrapped HTTP", fmt.Errorf("fetch feed: %w", &HTTPError{StatusCode: 502}), CategoryTransient},
		{"parse error", &ParseError{Source: "rss", Message: "unexpected EOF"}, CategoryInvalidInput},
		{"validation error", &ValidationError{Field: "city", Message: "required"}, CategoryInvalidInput},
		{"timeout error", &TimeoutError{Operation: "fetch", After: time.Second}, CategoryTransient},
		{"deadline exceeded", fmt.Errorf("get: %w", context.DeadlineExceeded), CategoryTransient},
		{"canceled", context.Canceled, CategoryPermanent},
		{"retryable llm error", llm.NewError("complete", errors.New("429"), true), CategoryTransient},
		{"fatal llm error", llm.NewError("complete", errors.New("401"), false), CategoryPermanent},
		{"categorized error", &CategorizedError{Category: CategoryTransient}, CategoryTransient},
		{"unknown error", errors.New("unknown"), CategoryPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Categorize(tt.err); got != tt.expected {
				t.Errorf("Categorize() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestCategorizedError(t *testing.T) {
	t.Run("error message with context", func(t *testing.T) {
		err := NewCategorized(errors.New("failed"), CategoryTransient, "weather lookup")
		expected := "weather lookup: failed (category: transient, attempts: 0)"
		if got := err.Error(); got != expected {
			t.Errorf("Error() = %q, want %q", got, expected)
		}
	})

	t.Run("error message without context", func(t *testing.T) {
		err := &CategorizedError{Err: errors.New("failed"), Category: CategoryTransient}
		if got := err.Error(); got != "failed (category: transient, attempts: 0)" {
			t.Errorf("Error() = %q", got)
		}
	})

	t.Run("unwrap", func(t *testing.T) {
		inner := errors.New("inner error")
		err := NewCategorized(inner, CategoryPermanent, "test")
		if !errors.Is(err, inner) {
			t.Error("Unwrap should return inner error")
		}
	})

	t.Run("constructors", func(t *testing.T) {
		inner := errors.New("x")
		if Transient(inner, "").Category != CategoryTransient {
			t.Error("Transient category mismatch")
		}
		if Permanent(inner, "").Category != CategoryPermanent {
			t.Error("Permanent category mismatch")
		}
		if InvalidInput(inner, "").Category != CategoryInvalidInput {
			t.Error("InvalidInput category mismatch")
		}
	})
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"http with endpoint", &HTTPError{StatusCode: 500, Message: "internal error", Endpoint: "/v1/forecast"}, "HTTP 500 at /v1/forecast: internal error"},
		{"http without endpoint", &HTTPError{StatusCode: 404, Message: "not found"}, "HTTP 404: not found"},
		{"parse with source", &ParseError{Source: "feed", Message: "bad xml"}, "parse feed: bad xml"},
		{"parse without source", &ParseError{Message: "bad xml"}, "parse error: bad xml"},
		{"validation", &ValidationError{Field: "url", Message: "required"}, "validation error on url: required"},
		{"timeout", &TimeoutError{Operation: "search", After: 2 * time.Second}, "timeout after 2s: search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("success on first try", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(WithMaxAttempts(3))
		result := WithRetry(cfg, func() (string, error) {
			calls++
			return "success", nil
		})

		if result.Err != nil {
			t.Errorf("Unexpected error: %v", result.Err)
		}
		if result.Value != "success" {
			t.Errorf("Value = %q, want %q", result.Value, "success")
		}
		if result.Attempts != 1 {
			t.Errorf("Attempts = %d, want 1", result.Attempts)
		}
		if calls != 1 {
			t.Errorf("Calls = %d, want 1", calls)
		}
	})

	t.Run("success on retry", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(
			WithMaxAttempts(3),
			WithInitialBackoff(1*time.Millisecond),
		)
		result := WithRetry(cfg, func() (string, error) {
			calls++
			if calls < 2 {
				return "", &HTTPError{StatusCode: 503} // transient
			}
			return "success", nil
		})

		if result.Err != nil {
			t.Errorf("Unexpected error: %v", result.Err)
		}
		if result.Attempts != 2 {
			t.Errorf("Attempts = %d, want 2", result.Attempts)
		}
	})

	t.Run("max attempts exceeded", func(t *testing.T) {
		cfg := NewRetryConfig(
			WithMaxAttempts(3),
			WithInitialBackoff(1*time.Millisecond),
		)
		result := WithRetry(cfg, func() (string, error) {
			return "", &HTTPError{StatusCode: 503}
		})

		if result.Err == nil {
			t.Error("Expected error after max attempts")
		}
		if result.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", result.Attempts)
		}
	})

	t.Run("non-retryable error stops immediately", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(WithMaxAttempts(3))
		result := WithRetry(cfg, func() (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 404} // permanent
		})

		if result.Err == nil {
			t.Error("Expected error")
		}
		if calls != 1 {
			t.Errorf("Calls = %d, want 1 (should not retry permanent error)", calls)
		}
	})

	t.Run("custom retryable func", func(t *testing.T) {
		calls := 0
		cfg := NewRetryConfig(
			WithMaxAttempts(3),
			WithInitialBackoff(1*time.Millisecond),
			WithRetryableFunc(func(_ error) bool { return true }), // retry everything
		)
		result := WithRetry(cfg, func() (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 404}
		})

		if calls != 3 {
			t.Errorf("Calls = %d, want 3 (custom func should retry)", calls)
		}
		if result.Attempts != 3 {
			t.Errorf("Attempts = %d, want 3", result.Attempts)
		}
	})
}

func TestWithRetryContext(t *testing.T) {
	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel() // cancel immediately

		cfg := NewRetryConfig(WithMaxAttempts(3))
		result := WithRetryContext(ctx, cfg, func(_ context.Context) (string, error) {
			return "never reached", nil
		})

		if result.Err == nil {
			t.Error("Expected error from cancelled context")
		}
	})

	t.Run("cancellation during backoff", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0

		cfg := NewRetryConfig(
			WithMaxAttempts(5),
			WithInitialBackoff(100*time.Millisecond),
		)

		go func() {
			time.Sleep(50 * time.Millisecond)
			cancel()
		}()

		result := WithRetryContext(ctx, cfg, func(_ context.Context) (string, error) {
			calls++
			return "", &HTTPError{StatusCode: 503}
		})

		if result.Err == nil {
			t.Error("Expected error from cancelled context")
		}
		if calls > 2 {
			t.Errorf("Calls = %d, expected <= 2 (should cancel during backoff)", calls)
		}
	})
}

func TestWithRetryOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := NewRetryConfig(
		WithMaxAttempts(3),
		WithInitialBackoff(time.Millisecond),
		WithJitter(0),
		WithOnRetry(func(attempt int, err error, backoff time.Duration) {
			attempts = append(attempts, attempt)
			if backoff <= 0 {
				t.Errorf("backoff = %v, want > 0", backoff)
			}
		}),
	)

	result := WithRetry(cfg, func() (int, error) {
		return 0, &HTTPError{StatusCode: 503}
	})

	var catErr *CategorizedError
	if !errors.As(result.Err, &catErr) {
		t.Fatalf("Err = %T, want *CategorizedError", result.Err)
	}
	if catErr.Retries != 3 {
		t.Errorf("Retries = %d, want 3", catErr.Retries)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Errorf("OnRetry attempts = %v, want [1 2]", attempts)
	}
}

func TestWithRetryZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	result := WithRetry(RetryConfig{}, func() (string, error) {
		calls++
		return "ok", nil
	})
	if calls != 1 || result.Value != "ok" {
		t.Errorf("calls = %d, value = %q", calls, result.Value)
	}
}

func TestCalculateBackoff(t *testing.T) {
	if got := calculateBackoff(time.Second, 0); got != time.Second {
		t.Errorf("no jitter = %v, want 1s", got)
	}
	for i := 0; i < 100; i++ {
		got := calculateBackoff(time.Second, 0.1)
		if got < 900*time.Millisecond || got > 1100*time.Millisecond {
			t.Fatalf("jittered backoff %v outside [0.9s, 1.1s]", got)
		}
	}
}

func TestNewRetryConfig(t *testing.T) {
	cfg := NewRetryConfig(
		WithMaxAttempts(5),
		WithInitialBackoff(2*time.Second),
		WithMaxBackoff(60*time.Second),
		WithBackoffFactor(3.0),
		WithJitter(0.2),
	)

	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff != 2*time.Second {
		t.Errorf("InitialBackoff = %v, want 2s", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff != 60*time.Second {
		t.Errorf("MaxBackoff = %v, want 60s", cfg.MaxBackoff)
	}
	if cfg.BackoffFactor != 3.0 {
		t.Errorf("BackoffFactor = %f, want 3.0", cfg.BackoffFactor)
	}
	if cfg.Jitter != 0.2 {
		t.Errorf("Jitter = %f, want 0.2", cfg.Jitter)
	}
}
