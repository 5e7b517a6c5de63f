package edgar

import "strings"

// DefaultFormTypes are the ownership-change form and its amendment.
var DefaultFormTypes = []string{"4", "4/A"}

// IndexEntry is one line of a daily form index.
type IndexEntry struct {
	FormType   string `json:"form_type"`
	Company    string `json:"company"`
	CIK        string `json:"cik"`
	FilingDate string `json:"filing_date"`
	Path       string `json:"path"`
}

// ParseLine splits a fixed-width index line into its fields. The company name
// is everything between the form type and the trailing CIK, date and path, so
// it may contain spaces. ok is false for lines with too few fields.
func ParseLine(line string) (IndexEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return IndexEntry{}, false
	}
	n := len(fields)
	return IndexEntry{
		FormType:   fields[0],
		Company:    strings.Join(fields[1:n-3], " "),
		CIK:        fields[n-3],
		FilingDate: fields[n-2],
		Path:       fields[n-1],
	}, true
}

// SelectEntries parses lines and keeps those whose form type is in forms.
// Header rows and other form types are skipped silently.
func SelectEntries(lines []string, forms []string) []IndexEntry {
	want := make(map[string]bool, len(forms))
	for _, f := range forms {
		want[f] = true
	}

	var entries []IndexEntry
	for _, line := range lines {
		e, ok := ParseLine(line)
		if !ok || !want[e.FormType] {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
