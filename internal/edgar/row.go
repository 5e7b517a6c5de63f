package edgar

// NumColumns is the width of a flattened row.
const NumColumns = 19

// Columns is the flattened row header, in output order.
var Columns = [NumColumns]string{
	"OWNER_CIK", "OWNER_NAME", "IS_DIRECTOR", "IS_OFFICER", "IS_10%_OWNER", "OTHER", "OFFICER_TITLE",
	"ISSUER_CIK", "ISSUER_COMPANY", "TICKER",
	"SECURITY", "TRANSACTION_DATE", "ACQUIRED/DISPOSED", "AMOUNT", "PRICE_PER_UNIT",
	"HOLDING_BEFORE", "HOLDING_AFTER", "OWNERSHIP_STATUS", "OWNERSHIP_NATURE",
}

// Row is one (filing, transaction) pair in Columns order.
type Row [NumColumns]string

// Values returns the row as a slice.
func (r Row) Values() []string {
	return r[:]
}

// Flatten expands a record into one row per transaction, in document order.
func Flatten(rec *FilingRecord) []Row {
	rows := make([]Row, 0, len(rec.Transactions))
	for _, tx := range rec.Transactions {
		rows = append(rows, flattenOne(rec, tx))
	}
	return rows
}

func flattenOne(rec *FilingRecord, tx Transaction) Row {
	o, i, h := rec.Owner, rec.Issuer, rec.Holding
	return Row{
		o.CIK, o.Name, o.IsDirector, o.IsOfficer, o.IsTenPercentOwner, o.IsOther, o.OfficerTitle,
		i.CIK, i.Company, i.Ticker,
		tx.Security, tx.Date, tx.Code, tx.Amount, tx.Price,
		h.HoldingBefore, tx.HoldingAfter, h.OwnershipStatus, h.OwnershipNature,
	}
}
