// Package errors classifies failures of outbound calls and retries the
// transient ones.
//
// Tools and model calls report failures with the types in this package
// (HTTPError, TimeoutError, ParseError, ValidationError) or with a
// CategorizedError. WithRetryContext consults Categorize to decide whether
// another attempt may help.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: rate limits, upstream 5xx, timeouts.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: authentication failures, missing resources.
	CategoryPermanent

	// CategoryInvalidInput indicates the request itself was wrong, for
	// example malformed tool arguments produced by the model.
	CategoryInvalidInput
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryInvalidInput:
		return "invalid_input"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	Err      error
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// InvalidInput creates an invalid-input error.
func InvalidInput(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryInvalidInput, context)
}

// Categorize determines how an error should be handled.
// Unknown errors are permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == http.StatusTooManyRequests,
			httpErr.StatusCode >= http.StatusInternalServerError:
			return CategoryTransient
		case httpErr.StatusCode == http.StatusBadRequest,
			httpErr.StatusCode == http.StatusUnprocessableEntity:
			return CategoryInvalidInput
		default:
			return CategoryPermanent
		}
	}

	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		if llmErr.Retryable {
			return CategoryTransient
		}
		return CategoryPermanent
	}

	var parseErr *ParseError
	var valErr *ValidationError
	if errors.As(err, &parseErr) || errors.As(err, &valErr) {
		return CategoryInvalidInput
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) || errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
