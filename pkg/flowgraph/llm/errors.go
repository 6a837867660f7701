package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNoChoices indicates the provider answered without any choice.
var ErrNoChoices = errors.New("response contained no choices")

// ErrToolLoopExhausted indicates the model still requested tools when the
// tool loop reached its iteration limit.
var ErrToolLoopExhausted = errors.New("tool loop reached iteration limit")

// Error is a provider failure annotated with the operation and whether a
// retry may succeed.
type Error struct {
	Op        string
	Err       error
	Retryable bool
}

// NewError creates an Error.
func NewError(op string, err error, retryable bool) *Error {
	return &Error{Op: op, Err: err, Retryable: retryable}
}

func (e *Error) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is an *Error marked retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	return errors.As(err, &llmErr) && llmErr.Retryable
}

// wrapAPIError classifies go-openai errors by HTTP status.
func wrapAPIError(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return NewError(op, err, retryableStatus(apiErr.HTTPStatusCode))
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return NewError(op, err, retryableStatus(reqErr.HTTPStatusCode))
	}
	return NewError(op, err, false)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
