package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/insider-cli/internal/config"
	"github.com/sells-group/insider-cli/internal/edgar"
	"github.com/sells-group/insider-cli/internal/fetcher"
	"github.com/sells-group/insider-cli/internal/store"
)

// rowStore is what every store driver provides.
type rowStore interface {
	store.RowSink
	store.DateCursor
	store.TickerSource
}

// dateCrawler crawls a single date.
type dateCrawler interface {
	Crawl(ctx context.Context, date time.Time) (*edgar.DailyBatch, error)
}

func initStore(ctx context.Context, sc config.StoreConfig) (rowStore, error) {
	switch sc.Driver {
	case "csv":
		return store.NewCSVSink(sc.Path), nil
	case "sqlite":
		st, err := store.NewSQLite(sc.Path)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	case "postgres":
		st, err := store.NewPostgres(ctx, sc.DatabaseURL, nil)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		return st, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

func newFetcher(ec config.EDGARConfig) *fetcher.HTTPFetcher {
	return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  ec.UserAgent,
		Timeout:    ec.Timeout(),
		MaxRetries: ec.MaxRetries,
	})
}

func newCrawler(c *config.Config, f fetcher.Fetcher) (*edgar.Crawler, error) {
	policy, err := edgar.ParseIndexPolicy(c.EDGAR.IndexMissingPolicy)
	if err != nil {
		return nil, err
	}
	return edgar.NewCrawler(f, edgar.NewRecordFilter(c.Filter.EntityMarkers), edgar.CrawlerConfig{
		DailyIndexURL:  c.EDGAR.DailyIndexURL,
		ArchiveBaseURL: c.EDGAR.ArchiveBaseURL,
		FormTypes:      c.EDGAR.FormTypes,
		MaxConcurrent:  c.EDGAR.MaxConcurrent,
		RequestDelay:   c.EDGAR.RequestDelay(),
		IndexPolicy:    policy,
	}), nil
}

// parseDay parses a YYYY-MM-DD flag value.
func parseDay(flag, v string) (time.Time, error) {
	t, err := time.Parse(store.DateLayout, v)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "invalid --%s %q (want YYYY-MM-DD)", flag, v)
	}
	return t, nil
}
