package edgar

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insider-cli/internal/fetcher"
)

// mapFetcher serves canned bodies keyed by URL. Missing URLs are 404s and
// entries in errs fail with the given error.
type mapFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	errs   map[string]error
	calls  []string
}

func newMapFetcher() *mapFetcher {
	return &mapFetcher{bodies: map[string][]byte{}, errs: map[string]error{}}
}

func (m *mapFetcher) Download(_ context.Context, url string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if err, ok := m.errs[url]; ok {
		return nil, err
	}
	b, ok := m.bodies[url]
	if !ok {
		return nil, eris.Wrapf(fetcher.ErrNotFound, "GET %s", url)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *mapFetcher) DownloadToFile(ctx context.Context, url string, path string) (int64, error) {
	body, err := m.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck
	data, _ := io.ReadAll(body)
	return int64(len(data)), os.WriteFile(path, data, 0o644)
}

func (m *mapFetcher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}
