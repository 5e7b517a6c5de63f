// Package monitoring evaluates recorded crawl runs against health thresholds
// and posts alerts to a webhook.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/insider-cli/internal/datekey"
	"github.com/sells-group/insider-cli/internal/store"
)

// MetricsSnapshot summarises the crawl runs inside the lookback window.
type MetricsSnapshot struct {
	Runs         int     `json:"runs"`
	IndexMissing int     `json:"index_missing"`
	Entries      int     `json:"entries"`
	Kept         int     `json:"kept"`
	Rejected     int     `json:"rejected"`
	Dropped      int     `json:"dropped"`
	Rows         int     `json:"rows"`
	DropRate     float64 `json:"drop_rate"`

	// LatestReportDate is zero when no run falls inside the window.
	LatestReportDate time.Time `json:"latest_report_date"`

	LookbackDays int       `json:"lookback_days"`
	CollectedAt  time.Time `json:"collected_at"`
}

// RunLister is the part of store.RunRecorder the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]store.Run, error)
}

// Collector gathers run statistics from the store.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new run-statistics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect summarises runs whose report date falls in the last lookbackDays days.
func (c *Collector) Collect(ctx context.Context, lookbackDays int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackDays: lookbackDays,
		CollectedAt:  now,
	}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		Since: datekey.Day(now).AddDate(0, 0, -lookbackDays),
		Limit: 10000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.Runs = len(runs)
	for _, r := range runs {
		if !r.IndexFound {
			snap.IndexMissing++
		}
		snap.Entries += r.Entries
		snap.Kept += r.Kept
		snap.Rejected += r.Rejected
		snap.Dropped += r.Dropped
		snap.Rows += r.Rows
		if r.ReportDate.After(snap.LatestReportDate) {
			snap.LatestReportDate = r.ReportDate
		}
	}
	if snap.Entries > 0 {
		snap.DropRate = float64(snap.Dropped) / float64(snap.Entries)
	}
	return snap, nil
}
