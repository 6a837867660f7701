package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	fgerrors "github.com/lighthuangfu/agent-study/pkg/flowgraph/errors"
)

// DefaultUserAgent is a desktop browser UA; several feeds reject Go's.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

const defaultMaxBody = 5 << 20

// Page is a fetched HTTP response body.
type Page struct {
	URL         string
	Status      int
	ContentType string
	Body        []byte
}

// Fetcher performs GET requests with a per-attempt timeout and retries
// transient failures.
type Fetcher struct {
	client    *http.Client
	retry     fgerrors.RetryConfig
	userAgent string
	maxBody   int64
	logger    *slog.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient sets the underlying client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithRetry sets the retry policy.
func WithRetry(cfg fgerrors.RetryConfig) FetcherOption {
	return func(f *Fetcher) {
		f.retry = cfg
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithLogger sets the logger for retry notices.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a Fetcher with a 20s timeout and the default retry
// policy.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{Timeout: 20 * time.Second},
		retry:     fgerrors.DefaultRetry,
		userAgent: DefaultUserAgent,
		maxBody:   defaultMaxBody,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Get fetches rawURL. Responses with status >= 400 fail with
// *errors.HTTPError; 429 and 5xx are retried.
func (f *Fetcher) Get(ctx context.Context, rawURL string, header http.Header) (*Page, error) {
	cfg := f.retry
	cfg.OnRetry = func(attempt int, err error, backoff time.Duration) {
		f.logger.Warn("fetch retry", "url", rawURL, "attempt", attempt, "backoff", backoff, "error", err)
	}

	res := fgerrors.WithRetryContext(ctx, cfg, func(ctx context.Context) (*Page, error) {
		return f.get(ctx, rawURL, header)
	})
	if res.Err != nil {
		return nil, res.Err
	}
	return res.Value, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string, header http.Header) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &fgerrors.ValidationError{Field: "url", Message: err.Error()}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransport(rawURL, f.client.Timeout, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, classifyTransport(rawURL, f.client.Timeout, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &fgerrors.HTTPError{
			StatusCode: resp.StatusCode,
			Message:    truncate(string(body), 200),
			Endpoint:   rawURL,
		}
	}

	return &Page{
		URL:         rawURL,
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// classifyTransport maps client errors to categories: timeouts and
// network errors are transient, cancellation is permanent.
func classifyTransport(rawURL string, timeout time.Duration, err error) error {
	if errors.Is(err, context.Canceled) {
		return fgerrors.Permanent(err, "GET "+rawURL)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", &fgerrors.TimeoutError{Operation: "GET " + rawURL, After: timeout}, err)
	}
	return fgerrors.Transient(err, "GET "+rawURL)
}
