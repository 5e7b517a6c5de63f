package edgar

import "strings"

// DefaultEntityMarkers are substrings that identify institutional or corporate
// owner names. Leading spaces keep "llc" and "lp" from matching inside words.
var DefaultEntityMarkers = []string{
	" llc", " lp", "group", "trust", "associates", "l.p.", "holdings", "inc.", "partners",
}

// RecordFilter keeps filings made by individual directors and officers.
type RecordFilter struct {
	markers []string
}

// NewRecordFilter builds a filter from a marker table; nil uses DefaultEntityMarkers.
func NewRecordFilter(markers []string) *RecordFilter {
	if markers == nil {
		markers = DefaultEntityMarkers
	}
	lower := make([]string, 0, len(markers))
	for _, m := range markers {
		if m == "" {
			continue
		}
		lower = append(lower, strings.ToLower(m))
	}
	return &RecordFilter{markers: lower}
}

// IsIndividualFiler requires both a non-entity owner name and a director or
// officer role.
func (f *RecordFilter) IsIndividualFiler(rec *FilingRecord) bool {
	return f.individualName(rec.Owner.Name) &&
		(IsTruthy(rec.Owner.IsDirector) || IsTruthy(rec.Owner.IsOfficer))
}

func (f *RecordFilter) individualName(name string) bool {
	name = strings.ToLower(name)
	for _, m := range f.markers {
		if strings.Contains(name, m) {
			return false
		}
	}
	return true
}

// IsTruthy reports whether a relationship flag is set ("1" or "true", any case).
func IsTruthy(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}
