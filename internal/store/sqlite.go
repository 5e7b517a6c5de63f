package store

import (
	"context"
	"database/sql"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/insider-cli/internal/edgar"
)

// SQLiteStore implements RowSink, RunRecorder and DateCursor using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS insider_transactions (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	report_date          TEXT NOT NULL,
	owner_cik            TEXT NOT NULL,
	owner_name           TEXT NOT NULL,
	is_director          TEXT NOT NULL,
	is_officer           TEXT NOT NULL,
	is_ten_percent_owner TEXT NOT NULL,
	is_other             TEXT NOT NULL,
	officer_title        TEXT NOT NULL,
	issuer_cik           TEXT NOT NULL,
	issuer_company       TEXT NOT NULL,
	ticker               TEXT NOT NULL,
	security             TEXT NOT NULL,
	transaction_date     TEXT NOT NULL,
	acquired_disposed    TEXT NOT NULL,
	amount               TEXT NOT NULL,
	price_per_unit       TEXT NOT NULL,
	holding_before       TEXT NOT NULL,
	holding_after        TEXT NOT NULL,
	ownership_status     TEXT NOT NULL,
	ownership_nature     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS crawl_runs (
	id             TEXT PRIMARY KEY,
	report_date    TEXT NOT NULL,
	index_found    INTEGER NOT NULL,
	entries        INTEGER NOT NULL,
	kept           INTEGER NOT NULL,
	rejected       INTEGER NOT NULL,
	dropped        INTEGER NOT NULL,
	rows_written   INTEGER NOT NULL,
	peak_in_flight INTEGER NOT NULL,
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dropped_filings (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES crawl_runs(id),
	url        TEXT NOT NULL,
	form_type  TEXT NOT NULL,
	company    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	error_type TEXT NOT NULL,
	error      TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_insider_transactions_report_date ON insider_transactions(report_date);
CREATE INDEX IF NOT EXISTS idx_insider_transactions_ticker ON insider_transactions(ticker);
CREATE INDEX IF NOT EXISTS idx_crawl_runs_report_date ON crawl_runs(report_date);
CREATE INDEX IF NOT EXISTS idx_dropped_filings_run_id ON dropped_filings(run_id);
`

var sqliteInsertRow = `INSERT INTO insider_transactions (report_date, ` +
	strings.Join(sqlColumns[:], ", ") + `) VALUES (?` +
	strings.Repeat(", ?", edgar.NumColumns) + `)`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WriteRows inserts all rows in one transaction.
func (s *SQLiteStore) WriteRows(ctx context.Context, reportDate time.Time, rows iter.Seq[edgar.Row]) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertRow)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	date := reportDate.Format(DateLayout)
	n := 0
	for row := range rows {
		if _, err := stmt.ExecContext(ctx, rowArgs(date, row)...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert row %d", n+1)
		}
		n++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit rows")
	}
	return n, nil
}

// CountRows returns the number of rows stored for reportDate.
func (s *SQLiteStore) CountRows(ctx context.Context, reportDate time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM insider_transactions WHERE report_date = ?`,
		reportDate.Format(DateLayout),
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count rows")
}

// LatestReportDate returns the newest report date with stored rows.
func (s *SQLiteStore) LatestReportDate(ctx context.Context) (time.Time, bool, error) {
	var d sql.NullString
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(report_date) FROM insider_transactions`).Scan(&d); err != nil {
		return time.Time{}, false, eris.Wrap(err, "sqlite: latest report date")
	}
	if !d.Valid {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(DateLayout, d.String)
	if err != nil {
		return time.Time{}, false, eris.Wrapf(err, "sqlite: parse report date %q", d.String)
	}
	return t, true, nil
}

// Tickers returns the distinct non-empty tickers, sorted.
func (s *SQLiteStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ticker FROM insider_transactions WHERE ticker <> '' ORDER BY ticker`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: tickers")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ticker")
		}
		out = append(out, t)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: tickers iterate")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_runs (id, report_date, index_found, entries, kept, rejected, dropped, rows_written, peak_in_flight, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ReportDate.Format(DateLayout), run.IndexFound, run.Entries, run.Kept, run.Rejected,
		run.Dropped, run.Rows, run.PeakInFlight, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) RecordDropped(ctx context.Context, runID string, dropped []edgar.DroppedFiling) error {
	if len(dropped) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, d := range dropped {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO dropped_filings (id, run_id, url, form_type, company, stage, error_type, error, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, d.URL, d.Entry.FormType, d.Entry.Company, d.Stage, d.ErrorType, d.Error, time.Now().UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert dropped filing for run %s", runID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit dropped filings")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	query := `SELECT id, report_date, index_found, entries, kept, rejected, dropped, rows_written, peak_in_flight, started_at, finished_at
		FROM crawl_runs WHERE 1=1`
	var args []any

	if !filter.Since.IsZero() {
		query += ` AND report_date >= ?`
		args = append(args, filter.Since.Format(DateLayout))
	}
	query += ` ORDER BY report_date DESC, started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r    Run
			date string
		)
		if err := rows.Scan(&r.ID, &date, &r.IndexFound, &r.Entries, &r.Kept, &r.Rejected,
			&r.Dropped, &r.Rows, &r.PeakInFlight, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if r.ReportDate, err = time.Parse(DateLayout, date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse report date %q", date)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// DroppedForRun returns the dropped filings recorded against a run.
func (s *SQLiteStore) DroppedForRun(ctx context.Context, runID string) ([]edgar.DroppedFiling, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, form_type, company, stage, error_type, error FROM dropped_filings WHERE run_id = ? ORDER BY created_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: dropped filings for run %s", runID)
	}
	defer rows.Close()

	var out []edgar.DroppedFiling
	for rows.Next() {
		var d edgar.DroppedFiling
		if err := rows.Scan(&d.URL, &d.Entry.FormType, &d.Entry.Company, &d.Stage, &d.ErrorType, &d.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dropped filing")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: dropped filings iterate")
}
