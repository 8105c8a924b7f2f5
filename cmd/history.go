// File: cmd/history.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pipemedic/pipemedic/internal/observability"
	"github.com/pipemedic/pipemedic/internal/rollback"
)

// newHistoryCmd creates the history command: print the version-history log.
func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show the backup/rollback version history.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			rb, err := rollback.NewManager(cfg.Healing.BackupDir, cfg.Healing.HistoryFile, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize rollback manager: %w", err)
			}

			records, err := rb.History()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				cmd.Println("No version history recorded.")
				return nil
			}
			for _, r := range records {
				cmd.Printf("%s  %-8s  %s  ->  %s\n",
					r.Timestamp.Format(time.RFC3339), r.Action, r.File, r.Backup)
			}
			return nil
		},
	}
}
