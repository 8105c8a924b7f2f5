// File: internal/chaos/chaos.go
package chaos

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/table"
)

// DefaultRenames simulates the upstream schema drift the healing loop is
// built to survive.
var DefaultRenames = map[string]string{
	"uid":           "user_id",
	"customer_name": "full_name",
}

// Unleash rewrites the CSV at path with renamed columns, corrupting its
// schema in place. It returns the renames that were actually applied.
func Unleash(path string, renames map[string]string, logger *zap.Logger) (map[string]string, error) {
	log := logger.Named("chaos")
	if renames == nil {
		renames = DefaultRenames
	}

	t, err := table.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	applied := make(map[string]string)
	for from, to := range renames {
		if t.HasColumn(from) {
			applied[from] = to
			log.Info("Renaming column.", zap.String("from", from), zap.String("to", to))
		}
	}
	if len(applied) == 0 {
		log.Warn("No matching columns found; schema left intact.", zap.String("path", path))
		return applied, nil
	}

	t.Rename(applied)
	if err := t.WriteFile(path); err != nil {
		return nil, fmt.Errorf("failed to write corrupted data file: %w", err)
	}

	log.Info("Chaos unleashed. Schema corrupted.", zap.String("path", path), zap.Int("renamed", len(applied)))
	return applied, nil
}
