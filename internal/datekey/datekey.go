// Package datekey maps calendar dates to EDGAR daily-index names and paths.
package datekey

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
)

const stampLayout = "20060102"

var indexFilenameRe = regexp.MustCompile(`^form\.(\d{8})\.idx$`)

// Quarter returns the fiscal quarter directory (QTR1..QTR4) for the date's month.
func Quarter(t time.Time) string {
	return fmt.Sprintf("QTR%d", (int(t.Month())-1)/3+1)
}

// IndexFilename returns the daily form index filename, e.g. form.20230114.idx.
func IndexFilename(t time.Time) string {
	return "form." + t.Format(stampLayout) + ".idx"
}

// IndexPath returns <year>/<quarter>/<filename>, relative to the daily-index root.
func IndexPath(t time.Time) string {
	return fmt.Sprintf("%d/%s/%s", t.Year(), Quarter(t), IndexFilename(t))
}

// ParseIndexFilename recovers the date encoded in a daily index filename.
func ParseIndexFilename(name string) (time.Time, error) {
	m := indexFilenameRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, eris.Errorf("datekey: not an index filename: %q", name)
	}
	t, err := time.Parse(stampLayout, m[1])
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "datekey: parse stamp %q", m[1])
	}
	return t, nil
}

// Weekdays returns the Monday-Friday dates in the half-open span (start, end].
func Weekdays(start, end time.Time) []time.Time {
	start = Day(start)
	end = Day(end)

	var days []time.Time
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		switch d.Weekday() {
		case time.Saturday, time.Sunday:
			continue
		}
		days = append(days, d)
	}
	return days
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LatestIndexDate scans dir for downloaded index files and returns the newest date.
// The bool is false when the directory holds no index files.
func LatestIndexDate(dir string) (time.Time, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return time.Time{}, false, eris.Wrapf(err, "datekey: read dir %s", dir)
	}

	var latest time.Time
	found := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		t, err := ParseIndexFilename(e.Name())
		if err != nil {
			continue
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	return latest, found, nil
}
