// File: cmd/rollback.go
package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/observability"
	"github.com/pipemedic/pipemedic/internal/rollback"
)

var (
	rollbackJobPath    string
	rollbackBackupPath string
)

// newRollbackCmd creates the rollback command: manually restore a job's
// source from a backup.
func newRollbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore a job's source from its most recent (or a specific) backup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			rb, err := rollback.NewManager(cfg.Healing.BackupDir, cfg.Healing.HistoryFile, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize rollback manager: %w", err)
			}

			restored, err := rb.Rollback(rollbackJobPath, rollbackBackupPath)
			if err != nil {
				return err
			}
			if !restored {
				return errors.New("no backup found for " + rollbackJobPath)
			}
			logger.Info("Restore complete.", zap.String("job", rollbackJobPath))
			return nil
		},
	}

	cmd.Flags().StringVar(&rollbackJobPath, "job", "", "Path to the job source to restore.")
	cmd.Flags().StringVar(&rollbackBackupPath, "backup", "", "Specific backup file to restore from (default: most recent).")
	_ = cmd.MarkFlagRequired("job")
	return cmd
}
