// File: cmd/helpers_test.go
package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/config"
	"github.com/pipemedic/pipemedic/internal/monitor"
)

// setupTestConfig returns a default configuration rooted in a temp directory
// so tests never touch the real logs/ tree.
func setupTestConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	c := config.NewDefaultConfig()
	c.Healing.BackupDir = filepath.Join(dir, "backups")
	c.Healing.HistoryFile = filepath.Join(dir, "version_history.json")
	c.Monitoring.MetricsFile = filepath.Join(dir, "metrics.json")
	c.Metrics.Enabled = false
	return c
}

// readStats loads the healing stats the monitor persisted during a test.
func readStats(t *testing.T, c *config.Config) monitor.Stats {
	t.Helper()
	stats, err := monitor.NewMonitor(c.Monitoring, zap.NewNop()).Stats()
	require.NoError(t, err)
	return stats
}
