package edgar

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insider-cli/internal/fetcher"
	"github.com/sells-group/insider-cli/internal/metrics"
)

// DefaultRequestDelay is the pause taken after acquiring a permit and before
// each filing request.
const DefaultRequestDelay = 1200 * time.Millisecond

// FilingFetcher downloads one filing under a shared RateLimiter and extracts it.
type FilingFetcher struct {
	fetcher fetcher.Fetcher
	baseURL string
	delay   time.Duration
}

// NewFilingFetcher creates a FilingFetcher resolving paths against archiveBaseURL.
// A negative delay is treated as zero.
func NewFilingFetcher(f fetcher.Fetcher, archiveBaseURL string, delay time.Duration) *FilingFetcher {
	if archiveBaseURL == "" {
		archiveBaseURL = DefaultArchiveBaseURL
	}
	if delay < 0 {
		delay = 0
	}
	return &FilingFetcher{fetcher: f, baseURL: archiveBaseURL, delay: delay}
}

// URL resolves the entry's relative path against the archive base.
func (ff *FilingFetcher) URL(entry IndexEntry) (string, error) {
	return resolveURL(ff.baseURL, entry.Path)
}

// Extract fetches and parses the filing for entry. Any failure is returned as
// a *FilingError carrying the URL and the stage that failed.
func (ff *FilingFetcher) Extract(ctx context.Context, entry IndexEntry, limiter *RateLimiter) (*FilingRecord, error) {
	u, err := ff.URL(entry)
	if err != nil {
		return nil, &FilingError{Stage: StageFetch, Err: err}
	}

	start := time.Now()
	body, err := ff.fetch(ctx, u, limiter)
	metrics.FilingFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &FilingError{URL: u, Stage: StageFetch, Err: err}
	}

	rec, err := ParseFiling(bytes.NewReader(body))
	if err != nil {
		var fe *FilingError
		if eris.As(err, &fe) {
			fe.URL = u
			return nil, fe
		}
		return nil, &FilingError{URL: u, Stage: StageParse, Err: err}
	}
	rec.URL = u
	rec.Entry = entry
	return rec, nil
}

// fetch holds a permit from acquisition until the body is fully read.
func (ff *FilingFetcher) fetch(ctx context.Context, u string, limiter *RateLimiter) ([]byte, error) {
	if err := limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer limiter.Release()
	metrics.FilingsInFlight.Inc()
	defer metrics.FilingsInFlight.Dec()

	if err := sleep(ctx, ff.delay); err != nil {
		return nil, eris.Wrap(err, "edgar: request delay")
	}

	zap.L().Debug("fetching filing", zap.String("url", u))
	body, err := ff.fetcher.Download(ctx, u)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: download filing")
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, eris.Wrap(err, "edgar: read filing")
	}
	return data, nil
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
