package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/sashabaranov/go-openai/jsonschema"

	fgerrors "github.com/lighthuangfu/agent-study/pkg/flowgraph/errors"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

const (
	feedEntries   = 5
	feedPreview   = 1000
	feedSeparator = "\n-----------------\n"
)

type urlArgs struct {
	URL string `json:"url"`
}

var requireURL = map[string]func(urlArgs) string{"url": func(a urlArgs) string { return a.URL }}

// RSSReader returns the rss_reader tool: the latest entries of a feed
// with their markup stripped.
func (s *Set) RSSReader() llm.Tool {
	return llm.NewTool(llm.ToolDefinition{
		Name:        NameRSSReader,
		Description: "Read and summarize the latest content from an RSS feed URL.",
		Parameters:  urlSchema("RSS or Atom feed URL"),
	}, func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := decodeArgs(raw, requireURL)
		if err != nil {
			return "", err
		}
		return s.ReadFeed(ctx, args.URL)
	})
}

// ReadFeed fetches and formats a feed.
func (s *Set) ReadFeed(ctx context.Context, url string) (string, error) {
	page, err := s.fetcher.Get(ctx, url, nil)
	if err != nil {
		return "", err
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(page.Body))
	if err != nil {
		return "", &fgerrors.ParseError{Source: url, Message: err.Error()}
	}
	if len(feed.Items) == 0 {
		return fmt.Sprintf("连接成功 (Status: %d)，但未解析到文章。可能原因：RSS 格式不标准或被反爬拦截。", page.Status), nil
	}

	items := feed.Items
	if len(items) > feedEntries {
		items = items[:feedEntries]
	}

	entries := make([]string, 0, len(items))
	for _, item := range items {
		entries = append(entries, formatItem(item))
	}
	return strings.Join(entries, feedSeparator), nil
}

func formatItem(item *gofeed.Item) string {
	title := firstNonEmpty(item.Title, "无标题")
	link := firstNonEmpty(item.Link, "#")
	published := firstNonEmpty(item.Published, item.Updated, "时间未知")
	content := firstNonEmpty(item.Content, item.Description, "无内容")

	return fmt.Sprintf("【文章标题】%s\n【发布时间】%s\n【原文链接】%s\n【文章内容】%s",
		title, published, link, truncate(plainText(content), feedPreview))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlSchema(desc string) jsonschema.Definition {
	return jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"url": {Type: jsonschema.String, Description: desc},
		},
		Required: []string{"url"},
	}
}
