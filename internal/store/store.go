// Package store persists flattened insider-transaction rows and crawl diagnostics.
package store

import (
	"context"
	"iter"
	"time"

	"github.com/sells-group/insider-cli/internal/edgar"
)

// DateLayout is the REPORT_DATE format in every sink.
const DateLayout = "2006-01-02"

// ReportDateColumn is the header prepended to edgar.Columns.
const ReportDateColumn = "REPORT_DATE"

// sqlColumns are the table column names for edgar.Columns, in the same order.
var sqlColumns = [edgar.NumColumns]string{
	"owner_cik", "owner_name", "is_director", "is_officer", "is_ten_percent_owner", "is_other", "officer_title",
	"issuer_cik", "issuer_company", "ticker",
	"security", "transaction_date", "acquired_disposed", "amount", "price_per_unit",
	"holding_before", "holding_after", "ownership_status", "ownership_nature",
}

// RowSink receives the rows of one crawled date.
type RowSink interface {
	// WriteRows consumes rows and tags each with reportDate. Returns rows written.
	WriteRows(ctx context.Context, reportDate time.Time, rows iter.Seq[edgar.Row]) (int, error)
	Close() error
}

// DateCursor reports the most recent REPORT_DATE already stored, so an
// incremental crawl can resume after it.
type DateCursor interface {
	LatestReportDate(ctx context.Context) (time.Time, bool, error)
}

// TickerSource lists the distinct issuer tickers already stored.
type TickerSource interface {
	Tickers(ctx context.Context) ([]string, error)
}

// Run summarises one crawled date.
type Run struct {
	ID           string    `json:"id"`
	ReportDate   time.Time `json:"report_date"`
	IndexFound   bool      `json:"index_found"`
	Entries      int       `json:"entries"`
	Kept         int       `json:"kept"`
	Rejected     int       `json:"rejected"`
	Dropped      int       `json:"dropped"`
	Rows         int       `json:"rows"`
	PeakInFlight int       `json:"peak_in_flight"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

// NewRun builds the run summary for a finished batch.
func NewRun(batch *edgar.DailyBatch, rows int, startedAt time.Time) *Run {
	return &Run{
		ReportDate:   batch.Date,
		IndexFound:   batch.IndexFound,
		Entries:      batch.Entries,
		Kept:         len(batch.Records),
		Rejected:     batch.Rejected,
		Dropped:      len(batch.Dropped),
		Rows:         rows,
		PeakInFlight: batch.PeakInFlight,
		StartedAt:    startedAt.UTC(),
		FinishedAt:   time.Now().UTC(),
	}
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Since  time.Time `json:"since,omitempty"`
	Limit  int       `json:"limit,omitempty"`
	Offset int       `json:"offset,omitempty"`
}

// RunRecorder stores crawl-run summaries and dropped-filing diagnostics.
type RunRecorder interface {
	// RecordRun inserts run, assigning run.ID when empty.
	RecordRun(ctx context.Context, run *Run) error
	RecordDropped(ctx context.Context, runID string, dropped []edgar.DroppedFiling) error
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
}

// rowArgs converts a row to driver arguments prefixed by the report date.
func rowArgs(reportDate any, row edgar.Row) []any {
	args := make([]any, 0, edgar.NumColumns+1)
	args = append(args, reportDate)
	for _, v := range row {
		args = append(args, v)
	}
	return args
}
