package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/insider-cli/internal/config"
	"github.com/sells-group/insider-cli/internal/fetcher"
	"github.com/sells-group/insider-cli/pkg/alphavantage"
)

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Download weekly adjusted price series for issuer tickers",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("market"); err != nil {
			return err
		}

		symbols, _ := cmd.Flags().GetStringSlice("symbols")
		fromStore, _ := cmd.Flags().GetBool("from-store")
		dir, _ := cmd.Flags().GetString("dir")

		if fromStore {
			st, err := initStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			stored, err := st.Tickers(ctx)
			_ = st.Close()
			if err != nil {
				return eris.Wrap(err, "market: list stored tickers")
			}
			symbols = append(symbols, stored...)
		}
		symbols = normalizeSymbols(symbols)
		if len(symbols) == 0 {
			return eris.New("market: no symbols; pass --symbols or --from-store")
		}

		client := newMarketClient(cfg)
		series := client.FetchSymbols(ctx, symbols)

		written, err := writeSeries(dir, series)
		fmt.Fprintf(os.Stdout, "%d of %d series saved to %s\n", written, len(symbols), dir)
		return err
	},
}

func newMarketClient(c *config.Config) alphavantage.Client {
	return alphavantage.NewClient(c.Market.Key,
		alphavantage.WithBaseURL(c.Market.BaseURL),
		alphavantage.WithFunction(c.Market.Function),
		alphavantage.WithConcurrency(c.Market.MaxConcurrent),
		alphavantage.WithRequestDelay(c.Market.RequestDelay()),
		alphavantage.WithFetcher(fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  c.EDGAR.UserAgent,
			Timeout:    c.EDGAR.Timeout(),
			MaxRetries: c.EDGAR.MaxRetries,
		})),
	)
}

// normalizeSymbols upper-cases, trims and de-duplicates symbols, dropping blanks.
func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// writeSeries saves each series as dir/<SYMBOL>.json.
func writeSeries(dir string, series map[string]json.RawMessage) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, eris.Wrapf(err, "market: create dir %s", dir)
	}

	symbols := make([]string, 0, len(series))
	for sym := range series {
		symbols = append(symbols, sym)
	}
	slices.Sort(symbols)

	written := 0
	for _, sym := range symbols {
		path := filepath.Join(dir, sym+".json")
		if err := os.WriteFile(path, series[sym], 0o644); err != nil {
			return written, eris.Wrapf(err, "market: write %s", path)
		}
		written++
	}
	return written, nil
}

func init() {
	f := marketCmd.Flags()
	f.StringSlice("symbols", nil, "comma-separated ticker symbols")
	f.Bool("from-store", false, "add every distinct ticker already in the store")
	f.String("dir", "market", "directory for <SYMBOL>.json files")
	rootCmd.AddCommand(marketCmd)
}
