// File: internal/rollback/manager.go
package rollback

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Record is one append-only entry in the version history. Records are never
// mutated or deleted; retention is out of scope.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	File      string    `json:"file"`
	Backup    string    `json:"backup"`
	Action    string    `json:"action"` // "backup" or "rollback"
}

const (
	actionBackup   = "backup"
	actionRollback = "rollback"

	// backupTimestampLayout has second resolution; its lexicographic order
	// equals chronological order, which is what latest-backup selection
	// relies on.
	backupTimestampLayout = "20060102_150405"
)

// Manager creates timestamped backups of job source files and restores them,
// logging every action to an append-only JSON version history. The backup
// directory and the history file are safe to share across sessions over
// different files; writes are whole-record appends.
type Manager struct {
	backupDir   string
	historyFile string
	logger      *zap.Logger
	now         func() time.Time
}

// Option tweaks a Manager. Used by tests to pin the clock.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager initializes a Manager, creating the backup directory if needed.
func NewManager(backupDir, historyFile string, logger *zap.Logger, opts ...Option) (*Manager, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	if dir := filepath.Dir(historyFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	m := &Manager{
		backupDir:   backupDir,
		historyFile: historyFile,
		logger:      logger.Named("rollback"),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateBackup copies the file's current bytes to a new timestamped location
// in the backup directory and appends a "backup" record. It returns the
// backup path. Reading the source failing is an error.
func (m *Manager) CreateBackup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read source for backup: %w", err)
	}

	name := fmt.Sprintf("%s.%s.bak", filepath.Base(path), m.now().Format(backupTimestampLayout))
	backupPath := filepath.Join(m.backupDir, name)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}

	m.logger.Info("Backup created.", zap.String("source", path), zap.String("backup", backupPath))
	if err := m.appendRecord(path, backupPath, actionBackup); err != nil {
		return "", err
	}
	return backupPath, nil
}

// Rollback restores path from backupPath, or from the most recent matching
// backup when backupPath is empty. It returns (false, nil) when no matching
// backup exists, leaving the target untouched. A successful restore appends a
// "rollback" record.
func (m *Manager) Rollback(path, backupPath string) (bool, error) {
	if backupPath == "" {
		latest, ok, err := m.latestBackup(path)
		if err != nil {
			return false, err
		}
		if !ok {
			m.logger.Warn("No backups found for rollback.", zap.String("source", path))
			return false, nil
		}
		backupPath = latest
	}

	data, err := os.ReadFile(backupPath)
	if err != nil {
		return false, fmt.Errorf("failed to read backup file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to restore source from backup: %w", err)
	}

	m.logger.Info("Rolled back.", zap.String("source", path), zap.String("backup", backupPath))
	if err := m.appendRecord(path, backupPath, actionRollback); err != nil {
		return false, err
	}
	return true, nil
}

// latestBackup selects the lexicographically greatest backup filename whose
// name starts with the source's basename. The timestamp encoding makes that
// the chronologically newest one.
func (m *Manager) latestBackup(path string) (string, bool, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to list backup directory: %w", err)
	}

	prefix := filepath.Base(path) + "."
	var candidates []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			candidates = append(candidates, e.Name())
		}
	}
	if len(candidates) == 0 {
		return "", false, nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(candidates)))
	return filepath.Join(m.backupDir, candidates[0]), true, nil
}

// History returns the version history records in append order. A missing
// history file yields an empty history.
func (m *Manager) History() ([]Record, error) {
	data, err := os.ReadFile(m.historyFile)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read version history: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode version history: %w", err)
	}
	return records, nil
}

// appendRecord does a whole-file read-modify-append-write of the history log.
func (m *Manager) appendRecord(path, backupPath, action string) error {
	records, err := m.History()
	if err != nil {
		return err
	}
	records = append(records, Record{
		Timestamp: m.now(),
		File:      path,
		Backup:    backupPath,
		Action:    action,
	})
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode version history: %w", err)
	}
	if err := os.WriteFile(m.historyFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write version history: %w", err)
	}
	return nil
}
