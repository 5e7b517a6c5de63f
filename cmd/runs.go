package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/insider-cli/internal/monitoring"
	"github.com/sells-group/insider-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect crawl run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List crawl runs, newest report date first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("crawl"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recorder, ok := st.(store.RunRecorder)
		if !ok {
			return eris.Errorf("runs: the %s driver does not record runs", cfg.Store.Driver)
		}

		since, _ := cmd.Flags().GetString("since")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		filter := store.RunFilter{Limit: limit, Offset: offset}
		if since != "" {
			t, err := parseDay("since", since)
			if err != nil {
				return err
			}
			filter.Since = t
		}

		runs, err := recorder.ListRuns(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

var runsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate recent runs against the monitoring thresholds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("crawl"); err != nil {
			return err
		}
		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recorder, ok := st.(store.RunRecorder)
		if !ok {
			return eris.Errorf("runs: the %s driver does not record runs", cfg.Store.Driver)
		}

		alerts := newChecker(recorder).Check(ctx)
		printAlerts(os.Stdout, alerts)
		return nil
	},
}

func newChecker(recorder store.RunRecorder) *monitoring.Checker {
	return monitoring.NewChecker(
		monitoring.NewCollector(recorder),
		monitoring.NewAlerter(cfg.Monitoring),
		cfg.Monitoring,
	)
}

// printAlerts writes one line per alert, or OK when there are none.
func printAlerts(out io.Writer, alerts []monitoring.Alert) {
	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "OK: no alerts")
		return
	}
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "[%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tINDEX\tENTRIES\tKEPT\tREJECTED\tDROPPED\tROWS\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t-------\t----\t--------\t-------\t----\t--------")

	for _, r := range runs {
		index := "yes"
		if !r.IndexFound {
			index = "no"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			truncateID(r.ID),
			r.ReportDate.Format(store.DateLayout),
			index,
			r.Entries,
			r.Kept,
			r.Rejected,
			r.Dropped,
			r.Rows,
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second),
		)
	}
	_ = w.Flush()
}

// truncateID shortens a UUID for display. Runs kept only in memory have no ID.
func truncateID(id string) string {
	switch {
	case id == "":
		return "-"
	case len(id) > 8:
		return id[:8]
	default:
		return id
	}
}

func init() {
	runsListCmd.Flags().String("since", "", "only runs for report dates on or after this date (YYYY-MM-DD)")
	runsListCmd.Flags().Int("limit", 50, "maximum number of runs")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsCheckCmd)
	rootCmd.AddCommand(runsCmd)
}
