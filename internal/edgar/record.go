// Package edgar crawls the EDGAR daily index for ownership-change filings and
// extracts each filing into a FilingRecord.
package edgar

// Owner identifies the reporting person and their relationship to the issuer.
// Relationship flags keep the raw token ("1", "true", "0", ...) or "" when absent.
type Owner struct {
	CIK               string `json:"cik"`
	Name              string `json:"name"`
	IsDirector        string `json:"is_director"`
	IsOfficer         string `json:"is_officer"`
	IsTenPercentOwner string `json:"is_ten_percent_owner"`
	IsOther           string `json:"is_other"`
	OfficerTitle      string `json:"officer_title"`
}

// Issuer identifies the company whose securities were traded.
type Issuer struct {
	CIK     string `json:"cik"`
	Company string `json:"company"`
	Ticker  string `json:"ticker"`
}

// Transaction is one non-derivative transaction row.
type Transaction struct {
	Key          string `json:"key"`
	Security     string `json:"security"`
	Date         string `json:"date"`
	Code         string `json:"code"`
	Amount       string `json:"amount"`
	Price        string `json:"price"`
	HoldingAfter string `json:"holding_after"`
}

// Holding is the ownership context shared by every transaction in a filing.
type Holding struct {
	HoldingBefore   string `json:"holding_before"`
	OwnershipStatus string `json:"ownership_status"`
	OwnershipNature string `json:"ownership_nature"`
}

// FilingRecord is a fully extracted filing. Transactions are in document
// order and always hold at least one entry.
type FilingRecord struct {
	URL          string        `json:"url"`
	Entry        IndexEntry    `json:"entry"`
	Owner        Owner         `json:"owner"`
	Issuer       Issuer        `json:"issuer"`
	Transactions []Transaction `json:"transactions"`
	Holding      Holding       `json:"holding"`
}
