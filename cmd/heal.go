// File: cmd/heal.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/analyzer"
	"github.com/pipemedic/pipemedic/internal/config"
	"github.com/pipemedic/pipemedic/internal/healer"
	"github.com/pipemedic/pipemedic/internal/llmclient"
	"github.com/pipemedic/pipemedic/internal/metrics"
	"github.com/pipemedic/pipemedic/internal/monitor"
	"github.com/pipemedic/pipemedic/internal/observability"
	"github.com/pipemedic/pipemedic/internal/rollback"
	"github.com/pipemedic/pipemedic/internal/runner"
)

var (
	healJobPath  string
	healDataPath string
	healErrorLog string
)

// newHealCmd creates the heal command: run one healing session for a failing
// job given its failure transcript.
func newHealCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heal",
		Short: "Diagnose a failing job and attempt to heal it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()

			errorText, err := os.ReadFile(healErrorLog)
			if err != nil {
				return fmt.Errorf("failed to read error log: %w", err)
			}

			gen, err := llmclient.NewClient(cfg.AI, logger)
			if err != nil {
				logger.Error("Failed to initialize fix generator. Healing requires a configured AI service.", zap.Error(err))
				return fmt.Errorf("failed to initialize fix generator: %w", err)
			}

			orch, err := buildOrchestrator(cfg, gen, logger)
			if err != nil {
				return err
			}

			healed, err := runHeal(cmd.Context(), cfg, logger, orch, healJobPath, healDataPath, string(errorText))
			if err != nil {
				return err
			}
			if !healed {
				return errors.New("healing failed; job source was rolled back")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&healJobPath, "job", "", "Path to the failing job's source file.")
	cmd.Flags().StringVar(&healDataPath, "data", "", "Path to the job's input data (CSV).")
	cmd.Flags().StringVar(&healErrorLog, "error-log", "", "Path to the captured failure transcript.")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("error-log")

	return cmd
}

// buildOrchestrator assembles the real collaborators for a healing session.
func buildOrchestrator(cfg *config.Config, gen healer.FixGenerator, logger *zap.Logger) (*healer.Orchestrator, error) {
	rb, err := rollback.NewManager(cfg.Healing.BackupDir, cfg.Healing.HistoryFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rollback manager: %w", err)
	}
	jobRunner := runner.NewProcessRunner(cfg.Healing.Interpreter, logger)
	return healer.NewOrchestrator(cfg.Healing, gen, jobRunner, rb, logger), nil
}

// runHeal contains the testable business logic for the command: run the
// session and record the outcome with the monitor and metrics.
func runHeal(
	ctx context.Context,
	cfg *config.Config,
	logger *zap.Logger,
	orch *healer.Orchestrator,
	jobPath, dataPath, errorText string,
) (bool, error) {
	mon := monitor.NewMonitor(cfg.Monitoring, logger)
	prom := metrics.NewManager(logger)

	if cfg.Metrics.Enabled {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := prom.Serve(metricsCtx, cfg.Metrics.ListenAddr); err != nil {
				logger.Warn("Metrics server stopped.", zap.Error(err))
			}
		}()
	}

	if err := mon.RecordFailure(errorText); err != nil {
		logger.Warn("Failed to record pipeline failure.", zap.Error(err))
	}
	prom.RecordError(string(analyzer.Analyze(errorText).Category))

	session, err := orch.Heal(ctx, jobPath, dataPath, errorText)

	status := "failure"
	if session.Healed {
		status = "success"
	}
	prom.RecordHealing(status)
	if recErr := mon.RecordHealing(session.Healed, len(session.Attempts), errorText); recErr != nil {
		logger.Warn("Failed to record healing outcome.", zap.Error(recErr))
	}

	var rollbackErr *healer.RollbackError
	if errors.As(err, &rollbackErr) {
		// The source may still be broken; this must not read as an ordinary
		// failed heal.
		logger.Error("Rollback failed; job source may be in a broken state.", zap.Error(err))
		return false, err
	}
	if err != nil {
		return false, err
	}
	return session.Healed, nil
}
