// Package llm defines the completion provider used by workflow steps and
// an OpenAI-compatible implementation of it.
package llm

import (
	"context"
	"strings"
)

// Client is a completion provider.
// Implementations must be safe for concurrent use.
type Client interface {
	// Complete runs the request to completion, executing any tool calls
	// the model makes along the way.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Stream is like Complete but delivers content as it is generated.
	// The channel is closed after a chunk with Done or Error set, or when
	// ctx is cancelled.
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamChunk, error)
}

// Collect drains a stream, calling onChunk for every content piece, and
// returns the concatenated text. It stops early if ctx is cancelled.
func Collect(ctx context.Context, ch <-chan StreamChunk, onChunk func(string)) (string, error) {
	var sb strings.Builder
	for {
		select {
		case <-ctx.Done():
			return sb.String(), ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				if err := ctx.Err(); err != nil {
					return sb.String(), err
				}
				return sb.String(), nil
			}
			if chunk.Error != nil {
				return sb.String(), chunk.Error
			}
			if chunk.Content != "" {
				sb.WriteString(chunk.Content)
				if onChunk != nil {
					onChunk(chunk.Content)
				}
			}
			if chunk.Done {
				return sb.String(), nil
			}
		}
	}
}
