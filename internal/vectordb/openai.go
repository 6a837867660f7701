package vectordb

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	fgerrors "github.com/lighthuangfu/agent-study/pkg/flowgraph/errors"
)

// DefaultBatchSize bounds the number of texts sent in one embeddings call.
const DefaultBatchSize = 64

// OpenAIEmbedder embeds texts through an OpenAI-compatible /embeddings
// endpoint. The requested dimension is sent with every call and every
// returned vector is checked against it, so a misconfigured model fails
// before anything reaches the collection.
type OpenAIEmbedder struct {
	api       *openai.Client
	model     string
	dim       int
	batchSize int
}

// OpenAIEmbedderOption configures an OpenAIEmbedder.
type OpenAIEmbedderOption func(*openAIEmbedderConfig)

type openAIEmbedderConfig struct {
	baseURL    string
	httpClient *http.Client
	batchSize  int
}

// WithEmbeddingBaseURL overrides the API base URL.
func WithEmbeddingBaseURL(url string) OpenAIEmbedderOption {
	return func(c *openAIEmbedderConfig) {
		if url != "" {
			c.baseURL = url
		}
	}
}

// WithEmbeddingHTTPClient sets the HTTP client used for API calls.
func WithEmbeddingHTTPClient(client *http.Client) OpenAIEmbedderOption {
	return func(c *openAIEmbedderConfig) {
		c.httpClient = client
	}
}

// WithBatchSize sets how many texts go into one request.
func WithBatchSize(n int) OpenAIEmbedderOption {
	return func(c *openAIEmbedderConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// NewOpenAIEmbedder returns an embedder for model producing dim-sized
// vectors, or DefaultDimension when dim <= 0.
func NewOpenAIEmbedder(apiKey, model string, dim int, opts ...OpenAIEmbedderOption) *OpenAIEmbedder {
	cfg := openAIEmbedderConfig{batchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	if dim <= 0 {
		dim = DefaultDimension
	}

	apiCfg := openai.DefaultConfig(apiKey)
	if cfg.baseURL != "" {
		apiCfg.BaseURL = cfg.baseURL
	}
	if cfg.httpClient != nil {
		apiCfg.HTTPClient = cfg.httpClient
	}

	return &OpenAIEmbedder{
		api:       openai.NewClientWithConfig(apiCfg),
		model:     model,
		dim:       dim,
		batchSize: cfg.batchSize,
	}
}

// Dimension implements Embedder.
func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// Embed implements Embedder. Vectors are returned in input order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float64, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		if err := e.embedBatch(ctx, texts[start:end], out[start:end]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string, out [][]float64) error {
	resp, err := e.api.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: e.dim,
	})
	if err != nil {
		return classifyEmbeddingError(err)
	}
	if len(resp.Data) != len(texts) {
		return &fgerrors.ParseError{
			Source:  "embeddings",
			Message: fmt.Sprintf("got %d vectors for %d inputs", len(resp.Data), len(texts)),
		}
	}

	for _, item := range resp.Data {
		if item.Index < 0 || item.Index >= len(texts) || out[item.Index] != nil {
			return &fgerrors.ParseError{Source: "embeddings", Message: fmt.Sprintf("unexpected index %d", item.Index)}
		}
		if len(item.Embedding) != e.dim {
			return &fgerrors.ValidationError{
				Field:   "dimension",
				Message: fmt.Sprintf("model %s returned %d values, collection expects %d", e.model, len(item.Embedding), e.dim),
			}
		}
		vec := make([]float64, e.dim)
		for i, v := range item.Embedding {
			vec[i] = float64(v)
		}
		out[item.Index] = vec
	}
	return nil
}

func classifyEmbeddingError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &fgerrors.HTTPError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, Endpoint: "embeddings"}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &fgerrors.HTTPError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error(), Endpoint: "embeddings"}
	}
	return fgerrors.Transient(err, "embeddings")
}
