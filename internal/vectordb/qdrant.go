// Package vectordb writes document chunks into a Qdrant collection
// through its REST API.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	fgerrors "github.com/lighthuangfu/agent-study/pkg/flowgraph/errors"
)

// DefaultURL is the local Qdrant REST endpoint.
const DefaultURL = "http://localhost:6333"

// Point is one vector with its payload.
type Point struct {
	ID      string         `json:"id"`
	Vector  []float64      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Qdrant is a minimal REST client: collection creation and upserts.
type Qdrant struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger

	mu      sync.Mutex
	ensured map[string]bool
}

// QdrantOption configures a Qdrant client.
type QdrantOption func(*Qdrant)

// WithAPIKey sets the api-key header.
func WithAPIKey(key string) QdrantOption {
	return func(q *Qdrant) { q.apiKey = strings.TrimSpace(key) }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) QdrantOption {
	return func(q *Qdrant) {
		if d > 0 {
			q.client.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) QdrantOption {
	return func(q *Qdrant) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewQdrant creates a client for baseURL, or DefaultURL when empty.
func NewQdrant(baseURL string, opts ...QdrantOption) *Qdrant {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultURL
	}
	q := &Qdrant{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
		ensured: map[string]bool{},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// EnsureCollection creates a cosine collection of the given vector size.
// An existing collection is accepted as is. Successful calls are cached
// per collection.
func (q *Qdrant) EnsureCollection(ctx context.Context, collection string, size int) error {
	if strings.TrimSpace(collection) == "" {
		return &fgerrors.ValidationError{Field: "collection", Message: "is required"}
	}
	if size <= 0 {
		return &fgerrors.ValidationError{Field: "size", Message: "must be > 0"}
	}

	q.mu.Lock()
	done := q.ensured[collection]
	q.mu.Unlock()
	if done {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{"size": size, "distance": "Cosine"},
	}
	err := q.do(ctx, http.MethodPut, "/collections/"+url.PathEscape(collection), body)
	var httpErr *fgerrors.HTTPError
	if err != nil && !(errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusConflict) {
		return err
	}

	q.mu.Lock()
	q.ensured[collection] = true
	q.mu.Unlock()
	return nil
}

// Upsert writes points and waits for the operation to be applied.
func (q *Qdrant) Upsert(ctx context.Context, collection string, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(collection))
	if err := q.do(ctx, http.MethodPut, path, map[string]any{"points": points}); err != nil {
		return err
	}
	q.logger.Debug("qdrant upsert completed", "collection", collection, "count", len(points))
	return nil
}

func (q *Qdrant) do(ctx context.Context, method, path string, in any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fgerrors.Transient(err, method+" "+path)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &fgerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
			Endpoint:   method + " " + path,
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
