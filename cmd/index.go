package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/insider-cli/internal/datekey"
	"github.com/sells-group/insider-cli/internal/edgar"
	"github.com/sells-group/insider-cli/internal/fetcher"
	"github.com/sells-group/insider-cli/internal/store"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage raw daily index files",
}

var indexDownloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Save raw daily index files to a directory",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("index"); err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("dir")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		update, _ := cmd.Flags().GetBool("update")

		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "index: create dir %s", dir)
		}

		dates, err := indexDates(dir, from, to, update, time.Now())
		if err != nil {
			return err
		}

		saved, err := downloadIndexes(ctx, newFetcher(cfg.EDGAR), cfg.EDGAR.DailyIndexURL, dir, dates)
		fmt.Fprintf(os.Stdout, "%d of %d index files saved to %s\n", saved, len(dates), dir)
		return err
	},
}

// indexDates selects the weekdays to download. With update, the range starts
// after the newest index already in dir.
func indexDates(dir, from, to string, update bool, now time.Time) ([]time.Time, error) {
	end := datekey.Day(now)
	if to != "" {
		t, err := parseDay("to", to)
		if err != nil {
			return nil, err
		}
		end = t
	}

	if update {
		latest, ok, err := datekey.LatestIndexDate(dir)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, eris.Errorf("index: no index files in %s; use --from for the first download", dir)
		}
		return datekey.Weekdays(latest, end), nil
	}

	if from == "" {
		return nil, eris.New("index: one of --from or --update is required")
	}
	start, err := parseDay("from", from)
	if err != nil {
		return nil, err
	}
	return datekey.Weekdays(start.AddDate(0, 0, -1), end), nil
}

// downloadIndexes saves each date's index as dir/form.YYYYMMDD.idx. Missing
// indexes (holidays) are skipped; other failures are logged and skipped.
func downloadIndexes(ctx context.Context, f fetcher.Fetcher, dailyIndexURL, dir string, dates []time.Time) (int, error) {
	log := zap.L().With(zap.String("component", "index_download"))
	ix := edgar.NewIndexFetcher(f, dailyIndexURL)

	saved := 0
	for _, d := range dates {
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		day := d.Format(store.DateLayout)

		u, err := ix.URL(d)
		if err != nil {
			return saved, err
		}
		path := filepath.Join(dir, datekey.IndexFilename(d))

		n, err := f.DownloadToFile(ctx, u, path)
		switch {
		case err == nil:
			saved++
			log.Info("index saved", zap.String("date", day), zap.String("path", path), zap.Int64("bytes", n))
		case errors.Is(err, fetcher.ErrNotFound):
			log.Info("no index for date", zap.String("date", day))
		case ctx.Err() != nil:
			return saved, ctx.Err()
		default:
			_ = os.Remove(path)
			log.Warn("index download failed", zap.String("date", day), zap.String("url", u), zap.Error(err))
		}
	}
	return saved, nil
}

func init() {
	f := indexDownloadCmd.Flags()
	f.String("dir", "indexes", "directory for downloaded index files")
	f.String("from", "", "first date (inclusive, YYYY-MM-DD)")
	f.String("to", "", "last date (default today)")
	f.Bool("update", false, "resume after the newest index file in --dir")
	indexDownloadCmd.MarkFlagsMutuallyExclusive("from", "update")
	indexCmd.AddCommand(indexDownloadCmd)
	rootCmd.AddCommand(indexCmd)
}
