// File: cmd/chaos.go
package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/pipemedic/pipemedic/internal/chaos"
	"github.com/pipemedic/pipemedic/internal/observability"
)

var chaosDataPath string

// newChaosCmd creates the chaos command: corrupt a dataset's schema to
// exercise the healing loop in demos and drills.
func newChaosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chaos",
		Short: "Corrupt a CSV's schema to simulate upstream drift.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			path := chaosDataPath
			if path == "" {
				path = cfg.Pipeline.DataPath
			}
			if path == "" {
				return errors.New("no data path configured; pass --data")
			}

			_, err := chaos.Unleash(path, nil, logger)
			return err
		},
	}

	cmd.Flags().StringVar(&chaosDataPath, "data", "", "CSV file to corrupt (default: pipeline.data_path).")
	return cmd
}
