// Package fetcher downloads documents from the EDGAR archive and other HTTP sources.
package fetcher

import (
	"context"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned (wrapped) when the remote resource does not exist.
var ErrNotFound = eris.New("fetcher: resource not found")

// StatusError reports a non-200 response that is neither a 404 nor retried away.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetcher: unexpected status %d from %s", e.StatusCode, e.URL)
}

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
