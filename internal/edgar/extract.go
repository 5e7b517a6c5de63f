package edgar

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
)

// Extraction stages, also used to label dropped filings.
const (
	StageFetch        = "fetch"
	StageParse        = "parse"
	StageTransactions = "transactions"
	StageOwner        = "owner"
	StageIssuer       = "issuer"
	StageHolding      = "holding"
)

var (
	// ErrMalformedFiling marks a filing missing a required element.
	ErrMalformedFiling = eris.New("edgar: malformed filing")
	// ErrNoTransactions marks a filing without a non-derivative transaction table,
	// e.g. a holdings-only statement.
	ErrNoTransactions = eris.New("edgar: no non-derivative transactions")
)

// FilingError describes why a filing produced no record.
type FilingError struct {
	URL   string
	Stage string
	Err   error
}

func (e *FilingError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("edgar: %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("edgar: %s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *FilingError) Unwrap() error { return e.Err }

// fieldSpec maps a path of element names (matched case-insensitively, at any
// depth below the previous one) onto a field of T.
type fieldSpec[T any] struct {
	name     string
	path     []string
	required bool
	set      func(*T, string)
}

var transactionSpec = []fieldSpec[Transaction]{
	{"securityTitle", []string{"securitytitle"}, true, func(t *Transaction, v string) { t.Security = v }},
	{"transactionDate", []string{"transactiondate"}, true, func(t *Transaction, v string) { t.Date = v }},
	{"transactionAcquiredDisposedCode", []string{"transactionamounts", "transactionacquireddisposedcode"}, true, func(t *Transaction, v string) { t.Code = v }},
	{"transactionShares", []string{"transactionamounts", "transactionshares"}, true, func(t *Transaction, v string) { t.Amount = v }},
	{"transactionPricePerShare", []string{"transactionamounts", "transactionpricepershare"}, false, func(t *Transaction, v string) { t.Price = v }},
	{"sharesOwnedFollowingTransaction", []string{"posttransactionamounts", "sharesownedfollowingtransaction"}, true, func(t *Transaction, v string) { t.HoldingAfter = v }},
}

var ownerSpec = []fieldSpec[Owner]{
	{"rptOwnerCik", []string{"reportingownerid", "rptownercik"}, true, func(o *Owner, v string) { o.CIK = v }},
	{"rptOwnerName", []string{"reportingownerid", "rptownername"}, true, func(o *Owner, v string) { o.Name = v }},
	{"isDirector", []string{"reportingownerrelationship", "isdirector"}, false, func(o *Owner, v string) { o.IsDirector = v }},
	{"isOfficer", []string{"reportingownerrelationship", "isofficer"}, false, func(o *Owner, v string) { o.IsOfficer = v }},
	{"isTenPercentOwner", []string{"reportingownerrelationship", "istenpercentowner"}, false, func(o *Owner, v string) { o.IsTenPercentOwner = v }},
	{"isOther", []string{"reportingownerrelationship", "isother"}, false, func(o *Owner, v string) { o.IsOther = v }},
	{"officerTitle", []string{"reportingownerrelationship", "officertitle"}, false, func(o *Owner, v string) { o.OfficerTitle = v }},
}

var issuerSpec = []fieldSpec[Issuer]{
	{"issuerCik", []string{"issuercik"}, true, func(i *Issuer, v string) { i.CIK = v }},
	{"issuerName", []string{"issuername"}, true, func(i *Issuer, v string) { i.Company = v }},
	{"issuerTradingSymbol", []string{"issuertradingsymbol"}, false, func(i *Issuer, v string) { i.Ticker = v }},
}

// holdingSpec is evaluated against the non-derivative table; the first match
// in document order wins.
var holdingSpec = []fieldSpec[Holding]{
	{"sharesOwnedFollowingTransaction", []string{"posttransactionamounts", "sharesownedfollowingtransaction"}, false, func(h *Holding, v string) { h.HoldingBefore = v }},
	{"directOrIndirectOwnership", []string{"ownershipnature", "directorindirectownership"}, false, func(h *Holding, v string) { h.OwnershipStatus = v }},
	{"natureOfOwnership", []string{"ownershipnature", "natureofownership"}, false, func(h *Holding, v string) { h.OwnershipNature = v }},
}

// lookup follows path from root and returns the trimmed text of the first match.
func lookup(root *goquery.Selection, path []string) (string, bool) {
	sel := root
	for _, name := range path {
		sel = sel.Find(name).First()
		if sel.Length() == 0 {
			return "", false
		}
	}
	return strings.TrimSpace(sel.Text()), true
}

func extractFields[T any](root *goquery.Selection, specs []fieldSpec[T]) (T, error) {
	var out T
	for _, spec := range specs {
		v, ok := lookup(root, spec.path)
		if !ok && spec.required {
			return out, eris.Wrapf(ErrMalformedFiling, "missing %s", spec.name)
		}
		spec.set(&out, v)
	}
	return out, nil
}

type parseState int

const (
	stateFetched parseState = iota
	stateTransactionsExtracted
	stateComplete
	stateRejected
)

// filingParser walks Fetched → TransactionsExtracted → Complete, or to
// Rejected at the first failed stage. Nothing is returned from a rejected parse.
type filingParser struct {
	doc   *goquery.Document
	state parseState
	rec   FilingRecord
	err   *FilingError
}

// ParseFiling extracts a FilingRecord from a filing document. Element names are
// matched case-insensitively and text is trimmed. Errors are *FilingError.
func ParseFiling(r io.Reader) (*FilingRecord, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &FilingError{Stage: StageParse, Err: eris.Wrap(err, "parse markup")}
	}

	p := &filingParser{doc: doc}
	for p.state != stateComplete && p.state != stateRejected {
		p.step()
	}
	if p.state == stateRejected {
		return nil, p.err
	}
	return &p.rec, nil
}

func (p *filingParser) step() {
	switch p.state {
	case stateFetched:
		txs, err := p.transactions()
		if err != nil {
			p.reject(StageTransactions, err)
			return
		}
		p.rec.Transactions = txs
		p.state = stateTransactionsExtracted

	case stateTransactionsExtracted:
		owner, err := p.owner()
		if err != nil {
			p.reject(StageOwner, err)
			return
		}
		issuer, err := p.issuer()
		if err != nil {
			p.reject(StageIssuer, err)
			return
		}
		p.rec.Owner = owner
		p.rec.Issuer = issuer
		p.rec.Holding = p.holding()
		p.state = stateComplete
	}
}

func (p *filingParser) reject(stage string, err error) {
	p.err = &FilingError{Stage: stage, Err: err}
	p.state = stateRejected
}

func (p *filingParser) transactions() ([]Transaction, error) {
	table := p.doc.Find("nonderivativetable").First()
	if table.Length() == 0 {
		return nil, ErrNoTransactions
	}
	rows := table.Find("nonderivativetransaction")
	if rows.Length() == 0 {
		return nil, ErrNoTransactions
	}

	txs := make([]Transaction, 0, rows.Length())
	var err error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		var tx Transaction
		tx, err = extractFields(row, transactionSpec)
		if err != nil {
			err = eris.Wrapf(err, "transaction %d", i+1)
			return false
		}
		tx.Key = fmt.Sprintf("transaction%d", i+1)
		txs = append(txs, tx)
		return true
	})
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (p *filingParser) owner() (Owner, error) {
	root := p.doc.Find("reportingowner").First()
	if root.Length() == 0 {
		return Owner{}, eris.Wrap(ErrMalformedFiling, "missing reportingOwner")
	}
	return extractFields(root, ownerSpec)
}

func (p *filingParser) issuer() (Issuer, error) {
	root := p.doc.Find("issuer").First()
	if root.Length() == 0 {
		return Issuer{}, eris.Wrap(ErrMalformedFiling, "missing issuer")
	}
	return extractFields(root, issuerSpec)
}

// holding has no required fields, so it cannot fail once transactions exist.
func (p *filingParser) holding() Holding {
	h, _ := extractFields(p.doc.Find("nonderivativetable").First(), holdingSpec)
	return h
}
