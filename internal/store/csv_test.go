package store

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insider-cli/internal/edgar"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return recs
}

func TestCSVSink_WriteRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewCSVSink(path)

	n, err := s.WriteRows(context.Background(), reportDate, seqOf(testRow("Doe Jane", "ACM", "1000"), testRow("Doe Jane", "ACM", "400")))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recs := readCSV(t, path)
	require.Len(t, recs, 3)
	assert.Equal(t, Header(), recs[0])
	assert.Len(t, recs[0], edgar.NumColumns+1)
	assert.Equal(t, "REPORT_DATE", recs[0][0])
	assert.Equal(t, "OWNER_CIK", recs[0][1])
	assert.Equal(t, "2023-01-13", recs[1][0])
	assert.Equal(t, "Doe Jane", recs[1][2])
	assert.Equal(t, "400", recs[2][14])
}

func TestCSVSink_AppendsWithoutSecondHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewCSVSink(path)
	ctx := context.Background()

	_, err := s.WriteRows(ctx, reportDate, seqOf(testRow("A", "AAA", "1")))
	require.NoError(t, err)
	_, err = s.WriteRows(ctx, reportDate.AddDate(0, 0, 3), seqOf(testRow("B", "BBB", "2")))
	require.NoError(t, err)
	n, err := s.WriteRows(ctx, reportDate.AddDate(0, 0, 4), seqOf())
	require.NoError(t, err)
	assert.Zero(t, n)

	recs := readCSV(t, path)
	require.Len(t, recs, 3)
	assert.Equal(t, "REPORT_DATE", recs[0][0])
	assert.Equal(t, "2023-01-16", recs[2][0])
}

func TestCSVSink_QuotesCommas(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewCSVSink(path)
	row := testRow("Doe, Jane", "ACM", "1")
	row[8] = "Syneos Health, Inc."

	_, err := s.WriteRows(context.Background(), reportDate, seqOf(row))
	require.NoError(t, err)

	recs := readCSV(t, path)
	assert.Equal(t, "Doe, Jane", recs[1][2])
	assert.Equal(t, "Syneos Health, Inc.", recs[1][9])
}

func TestCSVSink_LatestReportDateAndTickers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewCSVSink(path)
	ctx := context.Background()

	_, found, err := s.LatestReportDate(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = s.WriteRows(ctx, reportDate.AddDate(0, 0, 3), seqOf(testRow("A", "ZZZ", "1"), testRow("A", "", "1")))
	require.NoError(t, err)
	_, err = s.WriteRows(ctx, reportDate, seqOf(testRow("B", "AAA", "1"), testRow("B", "ZZZ", "1")))
	require.NoError(t, err)

	latest, found, err := s.LatestReportDate(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, reportDate.AddDate(0, 0, 3), latest)

	tickers, err := s.Tickers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA", "ZZZ"}, tickers)
	assert.NoError(t, s.Close())
}

func TestCSVSink_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	s := NewCSVSink(path)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := s.WriteRows(ctx, reportDate, seqOf(testRow("A", "AAA", "1")))
	assert.Error(t, err)
	assert.Zero(t, n)
}
