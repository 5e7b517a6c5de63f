package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/insider-cli/internal/datekey"
	"github.com/sells-group/insider-cli/internal/store"
)

// crawlOptions are the date-selection flags of the crawl command.
type crawlOptions struct {
	Date   string
	From   string
	To     string
	Update bool
}

var crawlFlags crawlOptions

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl daily Form 4 filings into the configured store",
	Long:  "Fetches the daily index for each selected weekday, extracts every Form 4 filing, keeps individual filers and writes one row per transaction.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			cfg.Store.Path = out
		}
		if driver, _ := cmd.Flags().GetString("driver"); driver != "" {
			cfg.Store.Driver = driver
		}
		if err := cfg.Validate("crawl"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dates, err := resolveDates(ctx, crawlFlags, st, time.Now())
		if err != nil {
			return err
		}
		if len(dates) == 0 {
			fmt.Fprintln(os.Stderr, "Nothing to crawl.")
			return nil
		}

		crawler, err := newCrawler(cfg, newFetcher(cfg.EDGAR))
		if err != nil {
			return err
		}

		runs, err := crawlDates(ctx, crawler, st, dates)
		formatRunsList(os.Stdout, runs)
		printSummary(os.Stdout, runs)
		return err
	},
}

// resolveDates turns the crawl flags into the ordered list of dates to crawl.
// --from is inclusive; --update resumes the day after the newest stored date.
func resolveDates(ctx context.Context, opts crawlOptions, cursor store.DateCursor, now time.Time) ([]time.Time, error) {
	end := datekey.Day(now)
	if opts.To != "" {
		t, err := parseDay("to", opts.To)
		if err != nil {
			return nil, err
		}
		end = t
	}

	switch {
	case opts.Date != "":
		d, err := parseDay("date", opts.Date)
		if err != nil {
			return nil, err
		}
		return []time.Time{d}, nil
	case opts.Update:
		latest, ok, err := cursor.LatestReportDate(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "crawl: read latest report date")
		}
		if !ok {
			return nil, eris.New("crawl: store holds no report dates; use --from for the first crawl")
		}
		return datekey.Weekdays(latest, end), nil
	case opts.From != "":
		start, err := parseDay("from", opts.From)
		if err != nil {
			return nil, err
		}
		if start.After(end) {
			return nil, eris.Errorf("crawl: --from %s is after --to %s", opts.From, end.Format(store.DateLayout))
		}
		return datekey.Weekdays(start.AddDate(0, 0, -1), end), nil
	default:
		return nil, eris.New("crawl: one of --date, --from or --update is required")
	}
}

// crawlDates crawls each date in turn and writes its rows to sink. Stores that
// record runs also get the run summary and dropped-filing diagnostics.
func crawlDates(ctx context.Context, c dateCrawler, sink store.RowSink, dates []time.Time) ([]store.Run, error) {
	log := zap.L().With(zap.String("component", "crawl"))
	recorder, _ := sink.(store.RunRecorder)

	runs := make([]store.Run, 0, len(dates))
	for _, d := range dates {
		started := time.Now()

		batch, err := c.Crawl(ctx, d)
		if err != nil {
			return runs, eris.Wrapf(err, "crawl %s", d.Format(store.DateLayout))
		}

		n, err := sink.WriteRows(ctx, batch.Date, batch.Rows())
		if err != nil {
			return runs, eris.Wrapf(err, "write rows for %s", d.Format(store.DateLayout))
		}

		run := store.NewRun(batch, n, started)
		if recorder != nil {
			if err := recorder.RecordRun(ctx, run); err != nil {
				return runs, err
			}
			if err := recorder.RecordDropped(ctx, run.ID, batch.Dropped); err != nil {
				return runs, err
			}
		}
		runs = append(runs, *run)

		log.Info("date crawled",
			zap.String("date", d.Format(store.DateLayout)),
			zap.Bool("index_found", batch.IndexFound),
			zap.Int("entries", batch.Entries),
			zap.Int("kept", run.Kept),
			zap.Int("rejected", run.Rejected),
			zap.Int("dropped", run.Dropped),
			zap.Int("rows", n),
		)
	}
	return runs, nil
}

// printSummary writes the totals of a crawl.
func printSummary(out io.Writer, runs []store.Run) {
	var rows, dropped int
	for _, r := range runs {
		rows += r.Rows
		dropped += r.Dropped
	}
	_, _ = fmt.Fprintf(out, "%d dates, %d rows, %d dropped filings\n", len(runs), rows, dropped)
}

func init() {
	f := crawlCmd.Flags()
	f.StringVar(&crawlFlags.Date, "date", "", "single date to crawl (YYYY-MM-DD)")
	f.StringVar(&crawlFlags.From, "from", "", "first date of a range (inclusive)")
	f.StringVar(&crawlFlags.To, "to", "", "last date of a range (default today)")
	f.BoolVar(&crawlFlags.Update, "update", false, "resume after the newest date already stored")
	f.String("out", "", "output path for csv/sqlite (overrides store.path)")
	f.String("driver", "", "store driver: csv, sqlite or postgres (overrides store.driver)")
	crawlCmd.MarkFlagsMutuallyExclusive("date", "from", "update")
	rootCmd.AddCommand(crawlCmd)
}
