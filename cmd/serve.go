package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/insider-cli/internal/edgar"
	"github.com/sells-group/insider-cli/internal/metrics"
	"github.com/sells-group/insider-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve on-demand crawls and metrics over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		crawler, err := newCrawler(cfg, newFetcher(cfg.EDGAR))
		if err != nil {
			return err
		}
		metrics.Register()

		stopMonitoring, err := startMonitoring(ctx)
		if err != nil {
			return err
		}
		defer stopMonitoring()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           newRouter(crawler),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	},
}

// startMonitoring runs the alert checker in the background when a webhook is
// configured and the store records runs. The returned func closes the store.
func startMonitoring(ctx context.Context) (func(), error) {
	if cfg.Monitoring.WebhookURL == "" {
		return func() {}, nil
	}
	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	recorder, ok := st.(store.RunRecorder)
	if !ok {
		_ = st.Close()
		zap.L().Warn("monitoring disabled: store driver does not record runs", zap.String("driver", cfg.Store.Driver))
		return func() {}, nil
	}
	go newChecker(recorder).Run(ctx)
	return func() { _ = st.Close() }, nil
}

// crawlResponse is the body of GET /crawl/{date}.
type crawlResponse struct {
	Date         string                `json:"date"`
	IndexFound   bool                  `json:"index_found"`
	IndexError   string                `json:"index_error,omitempty"`
	Entries      int                   `json:"entries"`
	Kept         int                   `json:"kept"`
	Rejected     int                   `json:"rejected"`
	PeakInFlight int                   `json:"peak_in_flight"`
	Columns      []string              `json:"columns"`
	Rows         [][]string            `json:"rows"`
	Dropped      []edgar.DroppedFiling `json:"dropped"`
}

func newRouter(crawler dateCrawler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/crawl/{date}", handleCrawl(crawler))
	return r
}

func handleCrawl(crawler dateCrawler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "date")
		date, err := time.Parse(store.DateLayout, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}

		batch, err := crawler.Crawl(r.Context(), date)
		if err != nil {
			zap.L().Warn("on-demand crawl failed", zap.String("date", raw), zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		resp := crawlResponse{
			Date:         batch.Date.Format(store.DateLayout),
			IndexFound:   batch.IndexFound,
			IndexError:   batch.IndexError,
			Entries:      batch.Entries,
			Kept:         len(batch.Records),
			Rejected:     batch.Rejected,
			PeakInFlight: batch.PeakInFlight,
			Columns:      edgar.Columns[:],
			Rows:         [][]string{},
			Dropped:      batch.Dropped,
		}
		if resp.Dropped == nil {
			resp.Dropped = []edgar.DroppedFiling{}
		}
		for row := range batch.Rows() {
			resp.Rows = append(resp.Rows, row.Values())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}
