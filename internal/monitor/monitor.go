// File: internal/monitor/monitor.go
package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/config"
)

// errorSnippetLen bounds how much failure text is kept per history entry.
const errorSnippetLen = 200

// HealingRecord is one entry in the persisted healing history.
type HealingRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error"`
}

// Stats is the persisted healing-history document.
type Stats struct {
	TotalFailures   int             `json:"total_failures"`
	TotalHeals      int             `json:"total_heals"`
	SuccessfulHeals int             `json:"successful_heals"`
	FailedHeals     int             `json:"failed_heals"`
	History         []HealingRecord `json:"healing_history"`
}

// SuccessRate returns the percentage of healing sessions that succeeded.
func (s Stats) SuccessRate() float64 {
	if s.TotalHeals == 0 {
		return 0
	}
	return float64(s.SuccessfulHeals) / float64(s.TotalHeals) * 100
}

// Monitor records failures and healing outcomes to a JSON stats file and
// sends Slack notifications with per-title deduplication so a flapping
// pipeline does not flood the channel.
type Monitor struct {
	cfg    config.MonitoringConfig
	logger *zap.Logger
	client *http.Client

	mu         sync.Mutex
	lastAlerts map[string]time.Time
	now        func() time.Time
}

// NewMonitor builds a monitor. Sending alerts is disabled when no webhook URL
// is configured; recording still works.
func NewMonitor(cfg config.MonitoringConfig, logger *zap.Logger) *Monitor {
	return &Monitor{
		cfg:        cfg,
		logger:     logger.Named("monitor"),
		client:     &http.Client{Timeout: 5 * time.Second},
		lastAlerts: make(map[string]time.Time),
		now:        time.Now,
	}
}

// RecordFailure counts one observed pipeline failure.
func (m *Monitor) RecordFailure(errorMessage string) error {
	if !m.cfg.Enabled {
		return nil
	}
	stats, err := m.loadStats()
	if err != nil {
		return err
	}
	stats.TotalFailures++
	m.logger.Info("Pipeline failure recorded.", zap.Int("total_failures", stats.TotalFailures))
	return m.saveStats(stats)
}

// RecordHealing records the outcome of one healing session and notifies the
// configured channels per the alert toggles.
func (m *Monitor) RecordHealing(success bool, attempts int, errorText string) error {
	if !m.cfg.Enabled {
		return nil
	}
	stats, err := m.loadStats()
	if err != nil {
		return err
	}

	stats.TotalHeals++
	if success {
		stats.SuccessfulHeals++
	} else {
		stats.FailedHeals++
	}
	stats.History = append(stats.History, HealingRecord{
		Timestamp: m.now(),
		Success:   success,
		Attempts:  attempts,
		Error:     truncate(errorText, errorSnippetLen),
	})

	if err := m.saveStats(stats); err != nil {
		return err
	}
	m.logger.Info("Healing recorded.",
		zap.Bool("success", success),
		zap.Int("attempts", attempts),
		zap.Float64("success_rate_pct", stats.SuccessRate()))

	switch {
	case success && m.cfg.AlertOnSuccess:
		m.SendAlert("Pipeline healed", fmt.Sprintf("Pipeline healed successfully in %d attempt(s).", attempts), "good")
	case !success && m.cfg.AlertOnFailure:
		m.SendAlert("Pipeline healing failed", fmt.Sprintf("Pipeline healing failed after %d attempt(s).", attempts), "danger")
	}
	return nil
}

// Stats returns the current persisted stats.
func (m *Monitor) Stats() (Stats, error) {
	return m.loadStats()
}

// SendAlert posts a notification to Slack. Alerts sharing a title within the
// dedup window are suppressed. Failures to deliver are logged, never fatal.
func (m *Monitor) SendAlert(title, message, color string) {
	m.mu.Lock()
	if last, ok := m.lastAlerts[title]; ok && m.now().Sub(last) < m.cfg.DedupWindow {
		m.mu.Unlock()
		m.logger.Info("Suppressed duplicate alert.", zap.String("title", title))
		return
	}
	m.lastAlerts[title] = m.now()
	m.mu.Unlock()

	if m.cfg.SlackWebhookURL == "" {
		m.logger.Info("Slack not configured; alert logged only.",
			zap.String("title", title), zap.String("message", message))
		return
	}

	payload := map[string]any{
		"attachments": []map[string]any{{
			"color":  color,
			"title":  title,
			"text":   message,
			"footer": "pipemedic",
			"ts":     m.now().Unix(),
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		m.logger.Error("Failed to encode Slack payload.", zap.Error(err))
		return
	}

	resp, err := m.client.Post(m.cfg.SlackWebhookURL, "application/json", bytes.NewReader(body))
	if err != nil {
		m.logger.Error("Failed to send Slack alert.", zap.Error(err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		m.logger.Error("Slack alert rejected.", zap.Int("status", resp.StatusCode))
		return
	}
	m.logger.Info("Slack alert sent.", zap.String("title", title))
}

func (m *Monitor) loadStats() (Stats, error) {
	var stats Stats
	data, err := os.ReadFile(m.cfg.MetricsFile)
	if os.IsNotExist(err) {
		return stats, nil
	}
	if err != nil {
		return stats, fmt.Errorf("failed to read healing stats: %w", err)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("failed to decode healing stats: %w", err)
	}
	return stats, nil
}

func (m *Monitor) saveStats(stats Stats) error {
	if dir := filepath.Dir(m.cfg.MetricsFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create stats directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode healing stats: %w", err)
	}
	if err := os.WriteFile(m.cfg.MetricsFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write healing stats: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
