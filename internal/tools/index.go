package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sashabaranov/go-openai/jsonschema"

	fgerrors "github.com/lighthuangfu/agent-study/pkg/flowgraph/errors"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// DefaultPageCollection is used when index_web_page gets no collection.
const DefaultPageCollection = "web_pages"

type indexArgs struct {
	URL        string `json:"url"`
	Collection string `json:"collection"`
}

// IndexPage returns the index_web_page tool: fetch a page, chunk and embed
// its text, and upsert the chunks into the vector store.
func (s *Set) IndexPage() llm.Tool {
	return llm.NewTool(llm.ToolDefinition{
		Name:        NameIndexPage,
		Description: "Fetch a web page and store its content in the vector database for later retrieval.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"url":        {Type: jsonschema.String, Description: "page URL"},
				"collection": {Type: jsonschema.String, Description: "target collection, default web_pages"},
			},
			Required: []string{"url"},
		},
	}, func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := decodeArgs(raw, map[string]func(indexArgs) string{
			"url": func(a indexArgs) string { return a.URL },
		})
		if err != nil {
			return "", err
		}
		if s.indexer == nil {
			return "", fgerrors.Permanent(fmt.Errorf("vector store is not configured"), NameIndexPage)
		}
		collection := args.Collection
		if collection == "" {
			collection = DefaultPageCollection
		}

		text, err := s.PageText(ctx, args.URL)
		if err != nil {
			return "", err
		}
		if text == "" {
			return fmt.Sprintf("页面 %s 没有可索引的文本。", args.URL), nil
		}
		n, err := s.indexer.IndexPage(ctx, collection, args.URL, text)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("已将 %s 写入向量库 %s，共 %d 个片段。", args.URL, collection, n), nil
	})
}
