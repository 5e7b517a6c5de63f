package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/insider-cli/internal/config"
	"github.com/sells-group/insider-cli/internal/store"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertDropRate     AlertType = "drop_rate"
	AlertIndexMissing AlertType = "index_missing"
	AlertStaleData    AlertType = "stale_data"
)

// minEntriesForDropRate is the entry count below which the drop rate is not evaluated.
const minEntriesForDropRate = 20

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := snap.CollectedAt

	if snap.Entries >= minEntriesForDropRate && a.cfg.DropRateThreshold > 0 && snap.DropRate > a.cfg.DropRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDropRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Dropped filing rate %.1f%% exceeds threshold %.1f%% (%d dropped / %d entries in last %dd)",
				snap.DropRate*100, a.cfg.DropRateThreshold*100, snap.Dropped, snap.Entries, snap.LookbackDays,
			),
			Details: map[string]any{
				"drop_rate": snap.DropRate,
				"threshold": a.cfg.DropRateThreshold,
				"dropped":   snap.Dropped,
				"entries":   snap.Entries,
			},
			Timestamp: now,
		})
	}

	if a.cfg.MissingIndexThreshold > 0 && snap.IndexMissing >= a.cfg.MissingIndexThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertIndexMissing,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d of %d crawled dates had no daily index in last %dd",
				snap.IndexMissing, snap.Runs, snap.LookbackDays,
			),
			Details: map[string]any{
				"index_missing": snap.IndexMissing,
				"runs":          snap.Runs,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleAfterDays > 0 {
		limit := now.AddDate(0, 0, -a.cfg.StaleAfterDays)
		if snap.LatestReportDate.IsZero() || snap.LatestReportDate.Before(limit) {
			latest := "never"
			if !snap.LatestReportDate.IsZero() {
				latest = snap.LatestReportDate.Format(store.DateLayout)
			}
			alerts = append(alerts, Alert{
				Type:     AlertStaleData,
				Severity: "high",
				Message: fmt.Sprintf(
					"Newest crawled report date is %s, older than %d days",
					latest, a.cfg.StaleAfterDays,
				),
				Details: map[string]any{
					"latest_report_date": latest,
					"stale_after_days":   a.cfg.StaleAfterDays,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
