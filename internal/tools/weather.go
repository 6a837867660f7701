package tools

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// wttr.in one-line format: location, condition, temperature, humidity, wind.
const weatherFormat = "%l: %c %t, 湿度 %h, 风 %w"

type weatherArgs struct {
	City string `json:"city"`
}

// Weather returns the get_weather tool.
func (s *Set) Weather() llm.Tool {
	return llm.NewTool(llm.ToolDefinition{
		Name:        NameWeather,
		Description: "Get the current weather for a city.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"city": {Type: jsonschema.String, Description: "city name, e.g. 北京"},
			},
			Required: []string{"city"},
		},
	}, func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := decodeArgs(raw, map[string]func(weatherArgs) string{
			"city": func(a weatherArgs) string { return a.City },
		})
		if err != nil {
			return "", err
		}
		return s.CurrentWeather(ctx, args.City)
	})
}

// CurrentWeather queries wttr.in for a one-line report.
func (s *Set) CurrentWeather(ctx context.Context, city string) (string, error) {
	q := url.Values{}
	q.Set("format", weatherFormat)
	q.Set("lang", "zh")
	target := strings.TrimRight(s.endpoints.WeatherURL, "/") + "/" + url.PathEscape(city) + "?" + q.Encode()

	page, err := s.fetcher.Get(ctx, target, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(page.Body)), nil
}
