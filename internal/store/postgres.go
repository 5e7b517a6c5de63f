package store

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/insider-cli/internal/db"
	"github.com/sells-group/insider-cli/internal/edgar"
)

// copyBatchSize bounds the rows buffered per COPY round trip.
const copyBatchSize = 5000

// PostgresStore implements RowSink, RunRecorder and DateCursor using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller owns its lifecycle.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS insider_transactions (
	id                   BIGSERIAL PRIMARY KEY,
	report_date          DATE NOT NULL,
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
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	report_date    DATE NOT NULL,
	index_found    BOOLEAN NOT NULL,
	entries        INTEGER NOT NULL,
	kept           INTEGER NOT NULL,
	rejected       INTEGER NOT NULL,
	dropped        INTEGER NOT NULL,
	rows_written   INTEGER NOT NULL,
	peak_in_flight INTEGER NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dropped_filings (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES crawl_runs(id),
	url        TEXT NOT NULL,
	form_type  TEXT NOT NULL,
	company    TEXT NOT NULL,
	stage      TEXT NOT NULL,
	error_type TEXT NOT NULL,
	error      TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_insider_transactions_report_date ON insider_transactions(report_date);
CREATE INDEX IF NOT EXISTS idx_insider_transactions_ticker ON insider_transactions(ticker);
CREATE INDEX IF NOT EXISTS idx_crawl_runs_report_date ON crawl_runs(report_date);
CREATE INDEX IF NOT EXISTS idx_dropped_filings_run_id ON dropped_filings(run_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func copyColumns() []string {
	return append([]string{"report_date"}, sqlColumns[:]...)
}

// WriteRows streams rows into insider_transactions with COPY, in batches,
// inside one transaction.
func (s *PostgresStore) WriteRows(ctx context.Context, reportDate time.Time, rows iter.Seq[edgar.Row]) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	cols := copyColumns()
	batch := make([][]any, 0, copyBatchSize)
	total := 0
	flush := func() error {
		n, err := db.CopyFromTx(ctx, tx, "insider_transactions", cols, batch)
		total += int(n)
		batch = batch[:0]
		return err
	}

	for row := range rows {
		batch = append(batch, rowArgs(reportDate, row))
		if len(batch) == copyBatchSize {
			if err := flush(); err != nil {
				return 0, eris.Wrap(err, "postgres: write rows")
			}
		}
	}
	if err := flush(); err != nil {
		return 0, eris.Wrap(err, "postgres: write rows")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit rows")
	}
	return total, nil
}

// CountRows returns the number of rows stored for reportDate.
func (s *PostgresStore) CountRows(ctx context.Context, reportDate time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM insider_transactions WHERE report_date = $1`, reportDate,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count rows")
}

// LatestReportDate returns the newest report date with stored rows.
func (s *PostgresStore) LatestReportDate(ctx context.Context) (time.Time, bool, error) {
	var d *time.Time
	if err := s.pool.QueryRow(ctx, `SELECT MAX(report_date) FROM insider_transactions`).Scan(&d); err != nil {
		return time.Time{}, false, eris.Wrap(err, "postgres: latest report date")
	}
	if d == nil {
		return time.Time{}, false, nil
	}
	return d.UTC(), true, nil
}

// Tickers returns the distinct non-empty tickers, sorted.
func (s *PostgresStore) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ticker FROM insider_transactions WHERE ticker <> '' ORDER BY ticker`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: tickers")
	}
	out, err := pgx.CollectRows(rows, pgx.RowTo[string])
	return out, eris.Wrap(err, "postgres: collect tickers")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawl_runs (id, report_date, index_found, entries, kept, rejected, dropped, rows_written, peak_in_flight, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		run.ID, run.ReportDate, run.IndexFound, run.Entries, run.Kept, run.Rejected,
		run.Dropped, run.Rows, run.PeakInFlight, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

// RecordDropped copies the dropped-filing diagnostics for a run.
func (s *PostgresStore) RecordDropped(ctx context.Context, runID string, dropped []edgar.DroppedFiling) error {
	if len(dropped) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([][]any, 0, len(dropped))
	for _, d := range dropped {
		rows = append(rows, []any{
			uuid.New().String(), runID, d.URL, d.Entry.FormType, d.Entry.Company, d.Stage, d.ErrorType, d.Error, now,
		})
	}
	_, err := db.CopyFrom(ctx, s.pool, "dropped_filings",
		[]string{"id", "run_id", "url", "form_type", "company", "stage", "error_type", "error", "created_at"}, rows)
	return eris.Wrapf(err, "postgres: record dropped filings for run %s", runID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var since any
	if !filter.Since.IsZero() {
		since = filter.Since
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, report_date, index_found, entries, kept, rejected, dropped, rows_written, peak_in_flight, started_at, finished_at
		 FROM crawl_runs
		 WHERE ($1::date IS NULL OR report_date >= $1)
		 ORDER BY report_date DESC, started_at DESC
		 LIMIT $2 OFFSET $3`,
		since, limit, filter.Offset,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ReportDate, &r.IndexFound, &r.Entries, &r.Kept, &r.Rejected,
			&r.Dropped, &r.Rows, &r.PeakInFlight, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
