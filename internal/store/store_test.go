package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/insider-cli/internal/edgar"
)

var (
	_ RowSink      = (*CSVSink)(nil)
	_ RowSink      = (*SQLiteStore)(nil)
	_ RowSink      = (*PostgresStore)(nil)
	_ RunRecorder  = (*SQLiteStore)(nil)
	_ RunRecorder  = (*PostgresStore)(nil)
	_ DateCursor   = (*CSVSink)(nil)
	_ DateCursor   = (*SQLiteStore)(nil)
	_ DateCursor   = (*PostgresStore)(nil)
	_ TickerSource = (*CSVSink)(nil)
	_ TickerSource = (*SQLiteStore)(nil)
	_ TickerSource = (*PostgresStore)(nil)
)

func TestNewRun(t *testing.T) {
	started := time.Now().Add(-time.Second)
	batch := &edgar.DailyBatch{
		Date:         reportDate,
		IndexFound:   true,
		Entries:      4,
		Records:      make([]edgar.FilingRecord, 1),
		Rejected:     2,
		Dropped:      testDropped()[:1],
		PeakInFlight: 2,
	}

	run := NewRun(batch, 3, started)
	assert.Empty(t, run.ID)
	assert.Equal(t, reportDate, run.ReportDate)
	assert.Equal(t, 4, run.Entries)
	assert.Equal(t, 1, run.Kept)
	assert.Equal(t, 2, run.Rejected)
	assert.Equal(t, 1, run.Dropped)
	assert.Equal(t, 3, run.Rows)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))
}

func TestRowArgs(t *testing.T) {
	args := rowArgs("2023-01-13", testRow("A", "AAA", "5"))
	assert.Len(t, args, edgar.NumColumns+1)
	assert.Equal(t, "2023-01-13", args[0])
	assert.Equal(t, "A", args[2])
	assert.Equal(t, "AAA", args[10])
}

func TestSQLColumnsMatchHeader(t *testing.T) {
	assert.Len(t, sqlColumns, len(edgar.Columns))
	assert.Equal(t, "ticker", sqlColumns[9])
	assert.Equal(t, "TICKER", edgar.Columns[9])
}
