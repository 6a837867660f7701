package tools

import (
	"encoding/json"
	"strings"

	fgerrors "github.com/lighthuangfu/agent-study/pkg/flowgraph/errors"
)

// decodeArgs unmarshals tool arguments and checks required string fields.
func decodeArgs[T any](raw json.RawMessage, required map[string]func(T) string) (T, error) {
	var args T
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return args, &fgerrors.ParseError{Source: "tool arguments", Message: err.Error()}
	}
	for field, get := range required {
		if strings.TrimSpace(get(args)) == "" {
			return args, &fgerrors.ValidationError{Field: field, Message: "is required"}
		}
	}
	return args, nil
}
