package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// UnknownLocation is returned when the lookup fails.
const UnknownLocation = "Unknown Location"

type ipLocation struct {
	Status  string `json:"status"`
	City    string `json:"city"`
	Country string `json:"country"`
}

// Location returns the get_current_location tool. Lookup failures are
// answered with UnknownLocation instead of an error so the model can ask
// the user.
func (s *Set) Location() llm.Tool {
	return llm.NewTool(llm.ToolDefinition{
		Name:        NameLocation,
		Description: "Get the user's approximate current city from their IP address.",
		Parameters:  jsonschema.Definition{Type: jsonschema.Object, Properties: map[string]jsonschema.Definition{}},
	}, func(ctx context.Context, _ json.RawMessage) (string, error) {
		return s.CurrentLocation(ctx), nil
	})
}

// CurrentLocation returns "city, country" or UnknownLocation.
func (s *Set) CurrentLocation(ctx context.Context) string {
	page, err := s.fetcher.Get(ctx, s.endpoints.LocationURL, nil)
	if err != nil {
		s.fetcher.logger.Warn("location lookup failed", "error", err)
		return UnknownLocation
	}
	var loc ipLocation
	if err := json.Unmarshal(page.Body, &loc); err != nil || loc.City == "" {
		return UnknownLocation
	}
	if loc.Status != "" && loc.Status != "success" {
		return UnknownLocation
	}
	return fmt.Sprintf("%s, %s", loc.City, loc.Country)
}
