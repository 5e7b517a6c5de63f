package store

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"io/fs"
	"iter"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/insider-cli/internal/edgar"
)

// CSVSink appends rows to a CSV file whose header is REPORT_DATE followed by
// edgar.Columns. The header is written only when the file is new or empty.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

// NewCSVSink returns a sink writing to path. The file is created on first write.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// Header returns the full CSV header row.
func Header() []string {
	return append([]string{ReportDateColumn}, edgar.Columns[:]...)
}

// WriteRows appends rows tagged with reportDate and flushes once at the end.
func (s *CSVSink) WriteRows(ctx context.Context, reportDate time.Time, rows iter.Seq[edgar.Row]) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, eris.Wrapf(err, "csv: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return 0, eris.Wrapf(err, "csv: stat %s", s.path)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(Header()); err != nil {
			return 0, eris.Wrap(err, "csv: write header")
		}
	}

	date := reportDate.Format(DateLayout)
	record := make([]string, edgar.NumColumns+1)
	n := 0
	for row := range rows {
		if err := ctx.Err(); err != nil {
			w.Flush()
			return n, eris.Wrap(err, "csv: write cancelled")
		}
		record[0] = date
		copy(record[1:], row.Values())
		if err := w.Write(record); err != nil {
			return n, eris.Wrap(err, "csv: write row")
		}
		n++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return n, eris.Wrap(err, "csv: flush")
	}
	return n, nil
}

// LatestReportDate scans the file for the newest REPORT_DATE.
func (s *CSVSink) LatestReportDate(_ context.Context) (time.Time, bool, error) {
	var latest time.Time
	found := false
	err := s.scan(func(rec []string) {
		d, err := time.Parse(DateLayout, rec[0])
		if err != nil {
			return
		}
		if !found || d.After(latest) {
			latest, found = d, true
		}
	})
	return latest, found, err
}

// Tickers returns the distinct non-empty tickers in the file, sorted.
func (s *CSVSink) Tickers(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	tickerCol := 1 + slices.Index(edgar.Columns[:], "TICKER")
	err := s.scan(func(rec []string) {
		if tickerCol < len(rec) && rec[tickerCol] != "" {
			seen[rec[tickerCol]] = true
		}
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	slices.Sort(out)
	return out, nil
}

// scan calls fn for every data record. A missing file has no records.
func (s *CSVSink) scan(fn func(rec []string)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return eris.Wrapf(err, "csv: open %s", s.path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return eris.Wrapf(err, "csv: read %s", s.path)
		}
		if header {
			header = false
			continue
		}
		if len(rec) > 0 {
			fn(rec)
		}
	}
}

// Close is a no-op; each write opens and closes the file.
func (s *CSVSink) Close() error { return nil }
