package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sells-group/insider-cli/internal/edgar"
	"github.com/sells-group/insider-cli/internal/store"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeCrawler returns canned batches keyed by YYYY-MM-DD; unknown dates get an empty batch.
type fakeCrawler struct {
	mu      sync.Mutex
	batches map[string]*edgar.DailyBatch
	err     error
	calls   []time.Time
}

func (f *fakeCrawler) Crawl(_ context.Context, date time.Time) (*edgar.DailyBatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, date)
	if f.err != nil {
		return nil, f.err
	}
	if b, ok := f.batches[date.Format(store.DateLayout)]; ok {
		return b, nil
	}
	return &edgar.DailyBatch{Date: date}, nil
}

// fakeCursor is a canned store.DateCursor.
type fakeCursor struct {
	latest time.Time
	ok     bool
	err    error
}

func (c fakeCursor) LatestReportDate(context.Context) (time.Time, bool, error) {
	return c.latest, c.ok, c.err
}

func testRecord(owner string, txCount int) edgar.FilingRecord {
	rec := edgar.FilingRecord{
		URL:    "http://archive.test/Archives/edgar/data/1/0001.txt",
		Entry:  edgar.IndexEntry{FormType: "4", Company: "ACME CORP", CIK: "320193", FilingDate: "20230113"},
		Owner:  edgar.Owner{CIK: "0001234567", Name: owner, IsDirector: "1", IsOfficer: "0"},
		Issuer: edgar.Issuer{CIK: "0000320193", Company: "ACME CORP", Ticker: "ACME"},
		Holding: edgar.Holding{
			HoldingBefore:   "5000",
			OwnershipStatus: "D",
		},
	}
	for i := range txCount {
		rec.Transactions = append(rec.Transactions, edgar.Transaction{
			Key:          fmt.Sprintf("transaction%d", i+1),
			Security:     "Common Stock",
			Date:         "2023-01-12",
			Code:         "A",
			Amount:       "100",
			Price:        "10.50",
			HoldingAfter: "5100",
		})
	}
	return rec
}

// testBatch holds two kept records (three rows), one rejection and one dropped filing.
func testBatch(date time.Time) *edgar.DailyBatch {
	return &edgar.DailyBatch{
		Date:       date,
		IndexFound: true,
		Entries:    4,
		Records:    []edgar.FilingRecord{testRecord("Doe Jane", 2), testRecord("Roe Richard", 1)},
		Rejected:   1,
		Dropped: []edgar.DroppedFiling{{
			URL:       "http://archive.test/Archives/edgar/data/2/0002.txt",
			Entry:     edgar.IndexEntry{FormType: "4", Company: "SMITH JOHN"},
			Stage:     "issuer",
			ErrorType: "permanent",
			Error:     "edgar: malformed filing",
		}},
		PeakInFlight: 2,
	}
}
