// Package alphavantage downloads weekly adjusted price series from the Alpha
// Vantage query API.
package alphavantage

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/insider-cli/internal/fetcher"
	"github.com/sells-group/insider-cli/internal/resilience"
)

const (
	// DefaultBaseURL is the query endpoint.
	DefaultBaseURL = "https://www.alphavantage.co/query"
	// DefaultFunction is the series requested per symbol.
	DefaultFunction = "TIME_SERIES_WEEKLY_ADJUSTED"
	// DefaultRequestDelay is the pause taken before every request.
	DefaultRequestDelay = 30 * time.Second
)

var (
	// ErrThrottled means the API answered with a rate-limit notice instead of data.
	ErrThrottled = eris.New("alphavantage: throttled")
	// ErrInvalidSymbol means the API rejected the symbol.
	ErrInvalidSymbol = eris.New("alphavantage: invalid symbol")
)

// Client defines the quote operations.
type Client interface {
	// WeeklyAdjusted returns the raw JSON series document for symbol.
	WeeklyAdjusted(ctx context.Context, symbol string) (json.RawMessage, error)
	// FetchSymbols downloads every symbol with bounded concurrency. Failed
	// symbols are logged and left out of the result.
	FetchSymbols(ctx context.Context, symbols []string) map[string]json.RawMessage
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithFunction sets the API function requested.
func WithFunction(fn string) Option {
	return func(c *httpClient) { c.function = fn }
}

// WithFetcher sets the transport.
func WithFetcher(f fetcher.Fetcher) Option {
	return func(c *httpClient) { c.fetcher = f }
}

// WithConcurrency bounds FetchSymbols' in-flight requests.
func WithConcurrency(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRequestDelay sets the pause before each request. Zero disables it.
func WithRequestDelay(d time.Duration) Option {
	return func(c *httpClient) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithRetry overrides the retry policy applied to throttled responses.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) { c.retry = cfg }
}

type httpClient struct {
	apiKey      string
	baseURL     string
	function    string
	fetcher     fetcher.Fetcher
	concurrency int
	delay       time.Duration
	retry       resilience.RetryConfig
}

// NewClient creates a new quote client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		function:    DefaultFunction,
		concurrency: 1,
		delay:       DefaultRequestDelay,
		retry:       resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
	}
	if c.retry.ShouldRetry == nil {
		c.retry.ShouldRetry = func(err error) bool {
			return eris.Is(err, ErrThrottled) || resilience.IsTransient(err)
		}
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("alphavantage", c.function)
	}
	return c
}

func (c *httpClient) requestURL(symbol string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", eris.Wrapf(err, "alphavantage: parse base url %q", c.baseURL)
	}
	q := u.Query()
	q.Set("function", c.function)
	q.Set("symbol", symbol)
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *httpClient) WeeklyAdjusted(ctx context.Context, symbol string) (json.RawMessage, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, eris.Wrap(ErrInvalidSymbol, "alphavantage: empty symbol")
	}
	reqURL, err := c.requestURL(symbol)
	if err != nil {
		return nil, err
	}

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (json.RawMessage, error) {
		if err := sleep(ctx, c.delay); err != nil {
			return nil, eris.Wrap(err, "alphavantage: request delay")
		}
		return c.fetch(ctx, symbol, reqURL)
	})
}

// fetch downloads one document and classifies API-level notices.
func (c *httpClient) fetch(ctx context.Context, symbol, reqURL string) (json.RawMessage, error) {
	body, err := c.fetcher.Download(ctx, reqURL)
	if err != nil {
		return nil, eris.Wrapf(err, "alphavantage: download %s", symbol)
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrapf(err, "alphavantage: read %s", symbol)
	}

	doc, err := fetcher.DecodeJSONObject[map[string]json.RawMessage](bytes.NewReader(data))
	if err != nil {
		return nil, eris.Wrapf(err, "alphavantage: decode %s", symbol)
	}
	if msg, ok := notice(*doc, "Error Message"); ok {
		return nil, eris.Wrapf(ErrInvalidSymbol, "alphavantage: %s: %s", symbol, msg)
	}
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := notice(*doc, key); ok {
			return nil, eris.Wrapf(ErrThrottled, "alphavantage: %s: %s", symbol, msg)
		}
	}
	return json.RawMessage(data), nil
}

func notice(doc map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := doc[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return string(raw), true
	}
	return s, true
}

func (c *httpClient) FetchSymbols(ctx context.Context, symbols []string) map[string]json.RawMessage {
	log := zap.L().With(zap.String("component", "alphavantage"), zap.Int("symbols", len(symbols)))

	var mu sync.Mutex
	out := make(map[string]json.RawMessage, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, sym := range symbols {
		g.Go(func() error {
			data, err := c.WeeklyAdjusted(gctx, sym)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("symbol download failed", zap.String("symbol", sym), zap.Error(err))
				return nil // don't fail the group
			}
			mu.Lock()
			out[strings.ToUpper(strings.TrimSpace(sym))] = data
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("symbol downloads cancelled", zap.Int("completed", len(out)), zap.Error(err))
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
