package store

import (
	"iter"
	"slices"
	"time"

	"github.com/sells-group/insider-cli/internal/edgar"
)

var reportDate = time.Date(2023, time.January, 13, 0, 0, 0, 0, time.UTC)

func testRow(owner, ticker, amount string) edgar.Row {
	return edgar.Row{
		"0001", owner, "1", "0", "0", "0", "",
		"0002", "ACME CORP", ticker,
		"Common Stock", "2023-01-12", "A", amount, "10.50",
		"100", "200", "D", "",
	}
}

func testDropped() []edgar.DroppedFiling {
	return []edgar.DroppedFiling{
		{
			URL:       "https://www.sec.gov/Archives/edgar/data/1/a.txt",
			Entry:     edgar.IndexEntry{FormType: "4", Company: "ROE RICHARD"},
			Stage:     edgar.StageTransactions,
			ErrorType: "permanent",
			Error:     "edgar: no non-derivative transactions",
		},
		{
			URL:       "https://www.sec.gov/Archives/edgar/data/2/b.txt",
			Entry:     edgar.IndexEntry{FormType: "4/A", Company: "SMITH JOHN"},
			Stage:     edgar.StageFetch,
			ErrorType: "transient",
			Error:     "all retries exhausted",
		},
	}
}

func seqOf(rows ...edgar.Row) iter.Seq[edgar.Row] {
	return slices.Values(rows)
}
