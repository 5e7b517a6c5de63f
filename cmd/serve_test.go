package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/insider-cli/internal/config"
	"github.com/sells-group/insider-cli/internal/edgar"
)

const fixtureDir = "../internal/edgar/testdata"

// archiveServer serves the Jan 14 2023 fixture index and its filings.
func archiveServer(t *testing.T) *httptest.Server {
	t.Helper()
	files := map[string]string{
		"/Archives/edgar/daily-index/2023/QTR1/form.20230114.idx": "form.20230114.idx",
		"/Archives/edgar/data/1234567/0000899243-23-001234.txt":   "form4_two.txt",
		"/Archives/edgar/data/1260937/0001209191-18-048211.txt":   "form4_single.txt",
		"/Archives/edgar/data/9999999/0000899243-23-005555.txt":   "form4_entity.txt",
		"/Archives/edgar/data/7654321/0000899243-23-009999.txt":   "form3_holdings_only.txt",
		"/Archives/edgar/data/1111111/0000899243-23-007777.txt":   "form4_no_issuer.txt",
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		data, err := os.ReadFile(filepath.Join(fixtureDir, name))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(archiveURL string) *config.Config {
	c := &config.Config{}
	c.EDGAR.ArchiveBaseURL = archiveURL + "/Archives/"
	c.EDGAR.DailyIndexURL = archiveURL + "/Archives/edgar/daily-index/"
	c.EDGAR.UserAgent = "insider-cli test@example.com"
	c.EDGAR.MaxConcurrent = 3
	c.EDGAR.TimeoutSecs = 5
	c.EDGAR.MaxRetries = 1
	c.EDGAR.FormTypes = []string{"4", "4/A"}
	c.EDGAR.IndexMissingPolicy = "lenient"
	c.Filter.EntityMarkers = edgar.DefaultEntityMarkers
	return c
}

func TestHealth(t *testing.T) {
	h := newRouter(&fakeCrawler{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	h := newRouter(&fakeCrawler{})
	req := httptest.NewRequest(http.MethodOptions, "/crawl/2023-01-14", http.NoBody)
	req.Header.Set("Origin", "http://dashboard.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodGet)
}

func TestMetricsRoute(t *testing.T) {
	h := newRouter(&fakeCrawler{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "# HELP")
}

func TestCrawlRoute_BadDate(t *testing.T) {
	fc := &fakeCrawler{}
	h := newRouter(fc)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/crawl/20230114", http.NoBody))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "YYYY-MM-DD")
	assert.Empty(t, fc.calls)
}

func TestCrawlRoute_CrawlError(t *testing.T) {
	h := newRouter(&fakeCrawler{err: errors.New("edgar: fetch index: connection reset")})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/crawl/2023-01-14", http.NoBody))

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Contains(t, rr.Body.String(), "connection reset")
}

func TestCrawlRoute_EmptyDay(t *testing.T) {
	h := newRouter(&fakeCrawler{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/crawl/2023-01-15", http.NoBody))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp crawlResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "2023-01-15", resp.Date)
	assert.False(t, resp.IndexFound)
	assert.NotNil(t, resp.Rows)
	assert.Empty(t, resp.Rows)
	assert.NotNil(t, resp.Dropped)
	assert.Len(t, resp.Columns, edgar.NumColumns)
}

func TestCrawlRoute_EndToEnd(t *testing.T) {
	srv := archiveServer(t)
	c := testConfig(srv.URL)
	crawler, err := newCrawler(c, newFetcher(c.EDGAR))
	require.NoError(t, err)

	h := newRouter(crawler)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/crawl/2023-01-14", http.NoBody))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp crawlResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "2023-01-14", resp.Date)
	assert.True(t, resp.IndexFound)
	assert.Equal(t, 5, resp.Entries)
	assert.Equal(t, 2, resp.Kept)
	assert.Equal(t, 1, resp.Rejected)
	assert.LessOrEqual(t, resp.PeakInFlight, 3)

	require.Len(t, resp.Rows, 3)
	assert.Equal(t, "Doe Jane", resp.Rows[0][1])
	assert.Equal(t, "Doe Jane", resp.Rows[1][1])
	assert.Equal(t, "ABBRECHT TODD M", resp.Rows[2][1])
	assert.Equal(t, "SYNH", resp.Rows[2][9])

	require.Len(t, resp.Dropped, 2)
	assert.Equal(t, edgar.StageTransactions, resp.Dropped[0].Stage)
	assert.Equal(t, edgar.StageIssuer, resp.Dropped[1].Stage)
}

func TestCrawlRoute_EndToEndMissingIndex(t *testing.T) {
	srv := archiveServer(t)
	c := testConfig(srv.URL)
	crawler, err := newCrawler(c, newFetcher(c.EDGAR))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	newRouter(crawler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/crawl/2023-01-16", http.NoBody))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp crawlResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.IndexFound)
	assert.Zero(t, resp.Entries)
}

func TestNewCrawler_InvalidPolicy(t *testing.T) {
	c := testConfig("http://unused.test")
	c.EDGAR.IndexMissingPolicy = "sometimes"
	_, err := newCrawler(c, newFetcher(c.EDGAR))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown index policy")
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
}
