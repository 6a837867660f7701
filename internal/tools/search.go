package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sashabaranov/go-openai/jsonschema"

	fgerrors "github.com/lighthuangfu/agent-study/pkg/flowgraph/errors"
	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

const defaultSearchResults = 5

// SearchResult is one hit from a search provider.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// SearchProvider runs a web search.
type SearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// DuckDuckGo scrapes the DuckDuckGo HTML endpoint. It needs no API key.
type DuckDuckGo struct {
	fetcher *Fetcher
	baseURL string
}

// NewDuckDuckGo creates a provider. An empty baseURL uses the public
// endpoint.
func NewDuckDuckGo(f *Fetcher, baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = DefaultEndpoints().SearchURL
	}
	return &DuckDuckGo{fetcher: f, baseURL: baseURL}
}

// Search implements SearchProvider.
func (d *DuckDuckGo) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSearchResults
	}
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, &fgerrors.ValidationError{Field: "search_url", Message: err.Error()}
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	page, err := d.fetcher.Get(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, &fgerrors.ParseError{Source: "search results", Message: err.Error()}
	}

	var results []SearchResult
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := s.Find("a.result__a").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return true
		}
		results = append(results, SearchResult{
			Title:   title,
			URL:     resolveRedirect(href),
			Snippet: strings.TrimSpace(s.Find(".result__snippet").Text()),
		})
		return len(results) < limit
	})
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

type searchArgs struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results"`
}

// WebSearch returns the web_search tool.
func (s *Set) WebSearch() llm.Tool {
	return llm.NewTool(llm.ToolDefinition{
		Name:        NameWebSearch,
		Description: "Search the web and return titles, links and snippets of the top results.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query":       {Type: jsonschema.String, Description: "search query"},
				"num_results": {Type: jsonschema.Integer, Description: "number of results, default 5"},
			},
			Required: []string{"query"},
		},
	}, func(ctx context.Context, raw json.RawMessage) (string, error) {
		args, err := decodeArgs(raw, map[string]func(searchArgs) string{
			"query": func(a searchArgs) string { return a.Query },
		})
		if err != nil {
			return "", err
		}
		results, err := s.search.Search(ctx, args.Query, args.NumResults)
		if err != nil {
			return "", err
		}
		return formatResults(args.Query, results), nil
	})
}

func formatResults(query string, results []SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("未找到与 %q 相关的结果。", query)
	}
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%d. %s\n%s", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "\n%s", r.Snippet)
		}
	}
	return b.String()
}
