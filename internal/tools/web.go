package tools

import (
	"context"
	"encoding/json"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

const webFetchLimit = 5000

// WebFetch returns the web_fetch tool: the visible text of a page,
// capped at 5000 characters.
func (s *Set) WebFetch() llm.Tool {
	return llm.NewTool(llm.ToolDefinition{
		Name:        NameWebFetch,
		Description: "Fetch the content of a web page directly.",
		Parameters:  urlSchema("page URL"),
	}, func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := decodeArgs(raw, requireURL)
		if err != nil {
			return "", err
		}
		text, err := s.PageText(ctx, args.URL)
		if err != nil {
			return "", err
		}
		return truncate(text, webFetchLimit), nil
	})
}

// PageText fetches url and returns its text without markup.
func (s *Set) PageText(ctx context.Context, url string) (string, error) {
	page, err := s.fetcher.Get(ctx, url, nil)
	if err != nil {
		return "", err
	}
	return plainText(string(page.Body)), nil
}
