// Package metrics defines Prometheus collectors for crawl activity.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	IndexFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insider",
			Name:      "index_fetches_total",
			Help:      "Daily index fetches by outcome",
		},
		[]string{"status"}, // "ok" / "not_found" / "error"
	)

	FilingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insider",
			Name:      "filings_total",
			Help:      "Filings processed by outcome",
		},
		[]string{"outcome"}, // "kept" / "rejected" / "dropped"
	)

	FilingsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "insider",
			Name:      "filings_dropped_total",
			Help:      "Dropped filings by failing stage and error class",
		},
		[]string{"stage", "error_type"},
	)

	FilingFetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "insider",
			Name:      "filing_fetch_duration_seconds",
			Help:      "Time from permit request to filing body read",
			Buckets:   []float64{0.5, 1, 1.5, 2, 3, 5, 10, 30},
		},
	)

	FilingsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "insider",
			Name:      "filings_in_flight",
			Help:      "Filing fetches currently holding a permit",
		},
	)

	RowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "insider",
			Name:      "rows_total",
			Help:      "Flattened rows produced",
		},
	)
)

var registerOnce sync.Once

// Register registers the crawl and HTTP collectors with the default registry. Safe to call repeatedly.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			IndexFetchesTotal,
			FilingsTotal,
			FilingsDroppedTotal,
			FilingFetchDuration,
			FilingsInFlight,
			RowsTotal,
			HTTPRequestDuration,
			HTTPRequestsTotal,
		)
	})
}
