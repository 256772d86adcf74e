package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cropcast/internal/config"
	"github.com/sells-group/cropcast/internal/model"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertUnitFailureRate AlertType = "unit_failure_rate"
	AlertTargetMissed    AlertType = "target_missed"
	AlertLowSkill        AlertType = "low_skill"
	AlertSystematicBias  AlertType = "systematic_bias"
)

// Alert is a single red flag raised for a run.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RunSummary is the part of a backtest result the alerter inspects.
type RunSummary struct {
	RunID    string
	Units    int
	Skipped  int
	Accuracy []model.AccuracyMetric
	Skill    []model.SkillScore
	Bias     []model.StateBias
}

// Alerter turns a run summary into alerts and delivers them to a webhook.
type Alerter struct {
	cfg    config.MonitorConfig
	client *http.Client
	clock  clockwork.Clock
}

// NewAlerter creates an Alerter. A nil clock uses real time.
func NewAlerter(cfg config.MonitorConfig, clock clockwork.Clock) *Alerter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		clock:  clock,
	}
}

// Evaluate returns the alerts raised by a run.
func (a *Alerter) Evaluate(run RunSummary) []Alert {
	var alerts []Alert
	now := a.clock.Now().UTC()

	if run.Units > 0 {
		rate := float64(run.Skipped) / float64(run.Units)
		if rate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertUnitFailureRate,
				Severity: "high",
				Message: fmt.Sprintf("%.1f%% of units skipped (%d of %d), threshold %.1f%%",
					rate*100, run.Skipped, run.Units, a.cfg.FailureRateThreshold*100),
				Details:   map[string]any{"run_id": run.RunID, "skipped": run.Skipped, "units": run.Units},
				Timestamp: now,
			})
		}
	}

	for _, m := range run.Accuracy {
		if m.Status != model.TargetFail {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      AlertTargetMissed,
			Severity:  "medium",
			Message:   fmt.Sprintf("%s week %d RMSE %.2f exceeds target %.2f", m.Commodity, m.Week, m.RMSE, m.TargetRMSE),
			Details:   map[string]any{"run_id": run.RunID, "commodity": m.Commodity, "week": m.Week, "n": m.N},
			Timestamp: now,
		})
	}

	for _, s := range run.Skill {
		if !s.Flagged || s.Value == nil {
			continue
		}
		alerts = append(alerts, Alert{
			Type:      AlertLowSkill,
			Severity:  "medium",
			Message:   fmt.Sprintf("%s week %d skill vs %s is %.3f", s.Commodity, s.Week, s.Benchmark, *s.Value),
			Details:   map[string]any{"run_id": run.RunID, "model_rmse": s.ModelRMSE, "benchmark_rmse": s.BenchmarkRMSE},
			Timestamp: now,
		})
	}

	for _, b := range run.Bias {
		if !b.Systematic {
			continue
		}
		direction := "over"
		if b.MeanError < 0 {
			direction = "under"
		}
		alerts = append(alerts, Alert{
			Type:      AlertSystematicBias,
			Severity:  "low",
			Message:   fmt.Sprintf("%s %s is systematically %s-predicted (mean error %.2f over %d forecasts)", b.Commodity, b.State, direction, b.MeanError, b.N),
			Details:   map[string]any{"run_id": run.RunID, "over_predicted_pct": b.OverPredictedPct},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook and returns how many
// were accepted. Delivery failures are logged, not returned.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	log := zap.L().With(zap.String("component", "monitoring.alerter"))
	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			log.Error("failed to send alert", zap.String("type", string(alert.Type)), zap.Error(err))
			continue
		}
		sent++
	}
	log.Info("alerts sent", zap.Int("sent", sent), zap.Int("raised", len(alerts)))
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
