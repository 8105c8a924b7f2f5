// File: cmd/run.go
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/llmclient"
	"github.com/pipemedic/pipemedic/internal/observability"
	"github.com/pipemedic/pipemedic/internal/pipeline"
)

var (
	runHealOnFailure bool
	runJobPath       string
)

// newRunCmd creates the run command: execute the reference ETL pipeline once,
// optionally handing a failure straight to the healer.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the reference ETL pipeline once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			start := time.Now()
			err := pipeline.New(cfg.Pipeline, logger).Run()
			elapsed := time.Since(start)
			if err == nil {
				logger.Info("Pipeline run passed.", zap.Duration("elapsed", elapsed))
				return nil
			}

			logger.Error("Pipeline run failed.", zap.Duration("elapsed", elapsed), zap.Error(err))
			if !runHealOnFailure {
				return err
			}

			if runJobPath == "" {
				return fmt.Errorf("--heal requires --job pointing at the job source to heal")
			}

			gen, genErr := llmclient.NewClient(cfg.AI, logger)
			if genErr != nil {
				return fmt.Errorf("failed to initialize fix generator: %w", genErr)
			}
			orch, orchErr := buildOrchestrator(cfg, gen, logger)
			if orchErr != nil {
				return orchErr
			}

			healed, healErr := runHeal(cmd.Context(), cfg, logger, orch, runJobPath, cfg.Pipeline.DataPath, err.Error())
			if healErr != nil {
				return healErr
			}
			if !healed {
				return fmt.Errorf("pipeline failed and healing did not recover it: %w", err)
			}
			logger.Info("Pipeline healed after failure.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&runHealOnFailure, "heal", false, "Hand a failing run to the healer.")
	cmd.Flags().StringVar(&runJobPath, "job", "", "Path to the job source to heal on failure.")
	return cmd
}
