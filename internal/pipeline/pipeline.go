// File: internal/pipeline/pipeline.go
package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/config"
	"github.com/pipemedic/pipemedic/internal/table"
	"github.com/pipemedic/pipemedic/internal/validate"
)

// createdAtLayouts are the timestamp formats the transform step accepts.
var createdAtLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// Pipeline is the reference ETL job: extract a CSV, rename columns to the
// canonical schema, gate on data quality, normalize timestamps, and load the
// result. Its failure messages deliberately carry the marker text the error
// analyzer classifies ("Schema Mismatch", the aggregate validation error).
type Pipeline struct {
	cfg    config.PipelineConfig
	logger *zap.Logger
}

// New builds the reference pipeline.
func New(cfg config.PipelineConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, logger: logger.Named("pipeline")}
}

// Run executes one extract-transform-load pass.
func (p *Pipeline) Run() error {
	p.logger.Info("Starting ETL pipeline.", zap.String("data", p.cfg.DataPath))

	t, err := table.ReadFile(p.cfg.DataPath)
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	// Map upstream column names onto the canonical schema.
	t.Rename(p.cfg.RenameMap)

	var missing []string
	for _, col := range p.cfg.RequiredCol {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("ValueError: Schema Mismatch! Missing columns after rename: [%s]. Did input columns change?",
			strings.Join(missing, ", "))
	}

	p.logger.Info("Running data validation.")
	validator := validate.NewValidator(
		validate.UniqueRule{Column: "id"},
		validate.NotNullRule{Column: "name"},
		validate.NotNullRule{Column: "email_address"},
	)
	if err := validator.Validate(t); err != nil {
		return err
	}
	p.logger.Info("Data validation passed.")

	if err := normalizeCreatedAt(t); err != nil {
		return err
	}

	if dir := filepath.Dir(p.cfg.OutputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("load failed: %w", err)
		}
	}
	if err := t.WriteFile(p.cfg.OutputPath); err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	p.logger.Info("Pipeline finished successfully.", zap.String("output", p.cfg.OutputPath))
	return nil
}

// normalizeCreatedAt rewrites the created_at column to RFC 3339. A value that
// parses under none of the accepted layouts fails the transform with a
// ValueError-marked message so the failure classifies as a type mismatch.
func normalizeCreatedAt(t *table.Table) error {
	col, ok := t.Column("created_at")
	if !ok {
		return nil
	}
	for i, v := range col.Values {
		if v.Null {
			continue
		}
		parsed, err := parseTimestamp(strings.TrimSpace(v.Raw))
		if err != nil {
			return fmt.Errorf("ValueError: invalid literal for timestamp in 'created_at' row %d: %q", i+1, v.Raw)
		}
		col.Values[i].Raw = parsed.Format(time.RFC3339)
	}
	return nil
}

func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range createdAtLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
