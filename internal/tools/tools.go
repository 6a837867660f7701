// Package tools implements the named tools the completion provider may
// call: feed reading, web fetch and search, IP location, weather and web
// page indexing.
package tools

import (
	"context"

	"github.com/lighthuangfu/agent-study/pkg/flowgraph/llm"
)

// Tool names.
const (
	NameRSSReader = "rss_reader"
	NameWebFetch  = "web_fetch"
	NameWebSearch = "web_search"
	NameLocation  = "get_current_location"
	NameWeather   = "get_weather"
	NameIndexPage = "index_web_page"
)

// Endpoints are the third-party services the tools call.
type Endpoints struct {
	SearchURL   string
	LocationURL string
	WeatherURL  string
}

// DefaultEndpoints returns the public service URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		SearchURL:   "https://html.duckduckgo.com/html/",
		LocationURL: "http://ip-api.com/json/?lang=zh-CN",
		WeatherURL:  "https://wttr.in",
	}
}

// PageIndexer stores the text of a web page in a vector collection and
// returns the number of chunks written.
type PageIndexer interface {
	IndexPage(ctx context.Context, collection, url, text string) (int, error)
}

// Set builds the tool list from shared dependencies.
type Set struct {
	fetcher   *Fetcher
	endpoints Endpoints
	search    SearchProvider
	indexer   PageIndexer
}

// NewSet creates a Set. A nil indexer omits index_web_page.
func NewSet(f *Fetcher, endpoints Endpoints, indexer PageIndexer) *Set {
	return &Set{
		fetcher:   f,
		endpoints: endpoints,
		search:    NewDuckDuckGo(f, endpoints.SearchURL),
		indexer:   indexer,
	}
}

// All returns every available tool.
func (s *Set) All() []llm.Tool {
	out := []llm.Tool{
		s.RSSReader(),
		s.WebFetch(),
		s.WebSearch(),
		s.Location(),
		s.Weather(),
	}
	if s.indexer != nil {
		out = append(out, s.IndexPage())
	}
	return out
}
