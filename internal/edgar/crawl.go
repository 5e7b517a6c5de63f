package edgar

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/insider-cli/internal/datekey"
	"github.com/sells-group/insider-cli/internal/fetcher"
	"github.com/sells-group/insider-cli/internal/metrics"
	"github.com/sells-group/insider-cli/internal/resilience"
)

// IndexPolicy decides how an index that could not be fetched is reported.
type IndexPolicy string

const (
	// IndexLenient treats every index failure as an empty day.
	IndexLenient IndexPolicy = "lenient"
	// IndexStrict treats only a missing index as an empty day and returns
	// transport failures to the caller.
	IndexStrict IndexPolicy = "strict"
)

// ParseIndexPolicy validates a policy name; "" means lenient.
func ParseIndexPolicy(s string) (IndexPolicy, error) {
	switch IndexPolicy(s) {
	case "", IndexLenient:
		return IndexLenient, nil
	case IndexStrict:
		return IndexStrict, nil
	default:
		return "", eris.Errorf("edgar: unknown index policy %q (valid: lenient, strict)", s)
	}
}

// CrawlerConfig configures a Crawler.
type CrawlerConfig struct {
	DailyIndexURL  string
	ArchiveBaseURL string
	FormTypes      []string
	MaxConcurrent  int
	RequestDelay   time.Duration
	IndexPolicy    IndexPolicy
}

// DroppedFiling is the diagnostic kept for a filing that produced no record.
type DroppedFiling struct {
	URL       string     `json:"url"`
	Entry     IndexEntry `json:"entry"`
	Stage     string     `json:"stage"`
	ErrorType string     `json:"error_type"`
	Error     string     `json:"error"`
}

// DailyBatch is the outcome of crawling one date.
type DailyBatch struct {
	Date         time.Time       `json:"date"`
	IndexFound   bool            `json:"index_found"`
	IndexError   string          `json:"index_error,omitempty"`
	Entries      int             `json:"entries"`
	Records      []FilingRecord  `json:"records"`
	Rejected     int             `json:"rejected"`
	Dropped      []DroppedFiling `json:"dropped"`
	PeakInFlight int             `json:"peak_in_flight"`

	rowsConsumed atomic.Bool
}

// Rows returns the flattened rows of the retained records. The sequence can be
// ranged over once; later calls yield nothing.
func (b *DailyBatch) Rows() iter.Seq[Row] {
	if !b.rowsConsumed.CompareAndSwap(false, true) {
		zap.L().Warn("daily batch rows already consumed", zap.Time("date", b.Date))
		return func(func(Row) bool) {}
	}
	return func(yield func(Row) bool) {
		for i := range b.Records {
			for _, row := range Flatten(&b.Records[i]) {
				metrics.RowsTotal.Inc()
				if !yield(row) {
					return
				}
			}
		}
	}
}

// Crawler runs the per-date pipeline: index, entry selection, concurrent
// filing extraction, filtering.
type Crawler struct {
	index   *IndexFetcher
	filings *FilingFetcher
	filter  *RecordFilter
	cfg     CrawlerConfig
}

// NewCrawler wires a Crawler over a shared fetcher.
func NewCrawler(f fetcher.Fetcher, filter *RecordFilter, cfg CrawlerConfig) *Crawler {
	if len(cfg.FormTypes) == 0 {
		cfg.FormTypes = DefaultFormTypes
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 8
	}
	if cfg.IndexPolicy == "" {
		cfg.IndexPolicy = IndexLenient
	}
	if filter == nil {
		filter = NewRecordFilter(nil)
	}
	return &Crawler{
		index:   NewIndexFetcher(f, cfg.DailyIndexURL),
		filings: NewFilingFetcher(f, cfg.ArchiveBaseURL, cfg.RequestDelay),
		filter:  filter,
		cfg:     cfg,
	}
}

type outcome struct {
	rec *FilingRecord
	err error
}

// Crawl processes one date. A missing index yields an empty batch. Individual
// filing failures are logged and listed in Dropped; only context cancellation
// (or a strict-policy index failure) returns an error.
func (c *Crawler) Crawl(ctx context.Context, date time.Time) (*DailyBatch, error) {
	date = datekey.Day(date)
	log := zap.L().With(zap.String("component", "edgar.crawler"), zap.String("date", date.Format(time.DateOnly)))
	batch := &DailyBatch{Date: date}

	lines, err := c.index.FetchIndex(ctx, date)
	switch {
	case err == nil:
		batch.IndexFound = true
		metrics.IndexFetchesTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrIndexNotFound):
		metrics.IndexFetchesTotal.WithLabelValues("not_found").Inc()
		log.Info("no daily index for date")
		return batch, nil
	case ctx.Err() != nil:
		return nil, eris.Wrap(ctx.Err(), "edgar: crawl cancelled")
	default:
		metrics.IndexFetchesTotal.WithLabelValues("error").Inc()
		if c.cfg.IndexPolicy == IndexStrict {
			return nil, eris.Wrap(err, "edgar: crawl")
		}
		log.Warn("daily index unavailable, treating as empty", zap.Error(err))
		batch.IndexError = err.Error()
		return batch, nil
	}

	entries := SelectEntries(lines, c.cfg.FormTypes)
	batch.Entries = len(entries)
	log.Info("selected filings", zap.Int("entries", len(entries)), zap.Strings("forms", c.cfg.FormTypes))

	limiter := NewRateLimiter(c.cfg.MaxConcurrent)
	outcomes := make([]outcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		g.Go(func() error {
			rec, err := c.filings.Extract(gctx, entry, limiter)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			outcomes[i] = outcome{rec: rec, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "edgar: crawl cancelled")
	}
	if n := limiter.InFlight(); n != 0 {
		panic("edgar: rate limiter leaked permits")
	}
	batch.PeakInFlight = limiter.Peak()

	for i, o := range outcomes {
		if o.err != nil {
			batch.Dropped = append(batch.Dropped, c.drop(log, entries[i], o.err))
			continue
		}
		if !c.filter.IsIndividualFiler(o.rec) {
			batch.Rejected++
			metrics.FilingsTotal.WithLabelValues("rejected").Inc()
			continue
		}
		metrics.FilingsTotal.WithLabelValues("kept").Inc()
		batch.Records = append(batch.Records, *o.rec)
	}

	log.Info("crawl complete",
		zap.Int("entries", batch.Entries),
		zap.Int("kept", len(batch.Records)),
		zap.Int("rejected", batch.Rejected),
		zap.Int("dropped", len(batch.Dropped)),
		zap.Int("peak_in_flight", batch.PeakInFlight),
	)
	return batch, nil
}

func (c *Crawler) drop(log *zap.Logger, entry IndexEntry, err error) DroppedFiling {
	d := DroppedFiling{
		Entry:     entry,
		Stage:     StageParse,
		ErrorType: resilience.ClassifyError(err),
		Error:     err.Error(),
	}
	var fe *FilingError
	if errors.As(err, &fe) {
		d.URL = fe.URL
		d.Stage = fe.Stage
	}

	metrics.FilingsTotal.WithLabelValues("dropped").Inc()
	metrics.FilingsDroppedTotal.WithLabelValues(d.Stage, d.ErrorType).Inc()
	log.Warn("dropping filing",
		zap.String("url", d.URL),
		zap.String("form_type", entry.FormType),
		zap.String("company", entry.Company),
		zap.String("stage", d.Stage),
		zap.String("error_type", d.ErrorType),
		zap.Error(err),
	)
	return d
}
