package edgar

import (
	"context"
	"errors"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"

	"github.com/sells-group/insider-cli/internal/datekey"
	"github.com/sells-group/insider-cli/internal/fetcher"
)

const (
	// DefaultArchiveBaseURL is the root that filing paths in the index are relative to.
	DefaultArchiveBaseURL = "https://www.sec.gov/Archives/"
	// DefaultDailyIndexURL is the root of the daily index tree.
	DefaultDailyIndexURL = "https://www.sec.gov/Archives/edgar/daily-index/"
)

// ErrIndexNotFound means the archive has no index for the date (weekend,
// holiday or a date not yet published).
var ErrIndexNotFound = eris.New("edgar: daily index not found")

// IndexFetcher downloads and decodes the daily form index.
type IndexFetcher struct {
	fetcher fetcher.Fetcher
	baseURL string
}

// NewIndexFetcher creates an IndexFetcher rooted at the daily-index URL.
func NewIndexFetcher(f fetcher.Fetcher, dailyIndexURL string) *IndexFetcher {
	if dailyIndexURL == "" {
		dailyIndexURL = DefaultDailyIndexURL
	}
	return &IndexFetcher{fetcher: f, baseURL: dailyIndexURL}
}

// URL returns the absolute index URL for the date.
func (x *IndexFetcher) URL(date time.Time) (string, error) {
	return resolveURL(x.baseURL, datekey.IndexPath(date))
}

// FetchIndex downloads the index for date and returns its lines. The body is
// decoded as Latin-1 so stray high bytes in company names never fail the decode.
func (x *IndexFetcher) FetchIndex(ctx context.Context, date time.Time) ([]string, error) {
	u, err := x.URL(date)
	if err != nil {
		return nil, err
	}

	body, err := x.fetcher.Download(ctx, u)
	if err != nil {
		if errors.Is(err, fetcher.ErrNotFound) {
			return nil, eris.Wrapf(ErrIndexNotFound, "edgar: index %s", datekey.IndexFilename(date))
		}
		return nil, eris.Wrapf(err, "edgar: fetch index %s", u)
	}
	defer body.Close() //nolint:errcheck

	data, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(body))
	if err != nil {
		return nil, eris.Wrapf(err, "edgar: read index %s", u)
	}

	return splitLines(string(data)), nil
}

func splitLines(s string) []string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}
	return lines
}

func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "edgar: parse base url %q", base)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", eris.Wrapf(err, "edgar: parse path %q", ref)
	}
	return b.ResolveReference(r).String(), nil
}
