// File: internal/healer/healer.go
package healer

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/analyzer"
	"github.com/pipemedic/pipemedic/internal/config"
	"github.com/pipemedic/pipemedic/internal/rollback"
	"github.com/pipemedic/pipemedic/internal/table"
)

// schemaSampleRows bounds how much of the data file is read for prompt
// context; column names and inferred types are all the generator needs.
const schemaSampleRows = 2

// Orchestrator drives the multi-attempt healing state machine:
//
//	start → backed_up → (generating → applied → tested)* → healed
//	                                                     | exhausted → rolled_back
//
// It is a single serial state machine per invocation. Exactly one session may
// safely mutate a given job file at a time; serializing concurrent sessions
// against the same file is the caller's responsibility.
type Orchestrator struct {
	cfg      config.HealingConfig
	gen      FixGenerator
	runner   JobRunner
	rollback *rollback.Manager
	logger   *zap.Logger
}

// NewOrchestrator wires the orchestrator's collaborators.
func NewOrchestrator(cfg config.HealingConfig, gen FixGenerator, runner JobRunner, rb *rollback.Manager, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		gen:      gen,
		runner:   runner,
		rollback: rb,
		logger:   logger.Named("healer"),
	}
}

// Heal classifies the failure, backs up the job's source, and runs the
// fix/apply/test loop for up to MaxAttempts, feeding each attempt's generated
// code and resulting error into the next request. On the first passing
// test-run it stops immediately; when every attempt fails (or the generator
// stalls) it restores the backup.
//
// The returned Session is always non-nil and reports what happened. A non-nil
// error means the session ended abnormally: the job's source could not be
// written, or the rollback itself failed (*RollbackError) and the source may
// still be broken. Exhausted attempts alone are a normal outcome: Healed is
// false and the error is nil.
func (o *Orchestrator) Heal(ctx context.Context, jobPath, dataPath, errorText string) (*Session, error) {
	session := &Session{
		ID:        uuid.New().String(),
		JobPath:   jobPath,
		DataPath:  dataPath,
		Diagnosis: analyzer.Analyze(errorText),
	}
	log := o.logger.With(zap.String("session_id", session.ID), zap.String("job", jobPath))

	log.Info("Examining failing job.",
		zap.String("category", string(session.Diagnosis.Category)),
		zap.String("strategy", session.Diagnosis.Strategy))

	// One backup per session, before any modification.
	if o.cfg.EnableBackup {
		backupPath, err := o.rollback.CreateBackup(jobPath)
		if err != nil {
			return session, fmt.Errorf("failed to back up job source: %w", err)
		}
		session.BackupPath = backupPath
	}

	original, err := os.ReadFile(jobPath)
	if err != nil {
		return session, fmt.Errorf("failed to read job source: %w", err)
	}

	sample := o.schemaSample(dataPath, log)

	// current is the code most recently supplied to the generator. Comparing
	// each generated fix against it (not against the original) detects a
	// generator that converged on attempt N>1, not just on attempt 1.
	current := string(original)
	stalled := false

	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		// Cancellation is cooperative and checked between attempts only.
		if ctx.Err() != nil {
			log.Warn("Healing cancelled; skipping remaining attempts.", zap.Error(ctx.Err()))
			break
		}

		log.Info("Healing attempt.", zap.Int("attempt", attempt), zap.Int("max_attempts", o.cfg.MaxAttempts))

		req := FixRequest{
			ErrorText:    errorText,
			Source:       current,
			SchemaSample: sample,
			Attempt:      attempt,
			Diagnosis:    &session.Diagnosis,
		}
		if n := len(session.Attempts); n > 0 {
			last := session.Attempts[n-1]
			req.PreviousFix = last.Code
			req.PreviousError = last.FailureText
		}

		fix, err := o.gen.Generate(ctx, req)
		if err != nil {
			// A generation-service failure is a failed attempt, not a crash:
			// degrade to the unchanged input so the stall check fires.
			log.Warn("Fix generation failed; treating as no new fix.", zap.Error(err))
			fix = current
		}

		if fix == current {
			log.Warn("Generator returned identical code; no new fix available.", zap.Int("attempt", attempt))
			stalled = true
			break
		}

		if err := os.WriteFile(jobPath, []byte(fix), 0o644); err != nil {
			// A half-written source is worse than the original failure.
			// Restore best-effort, then surface the apply failure.
			log.Error("Failed to apply fix; attempting restore.", zap.Error(err))
			if restored, rbErr := o.rollback.Rollback(jobPath, session.BackupPath); rbErr != nil || !restored {
				return session, fmt.Errorf("failed to apply fix: %w (restore also failed: %v)", err, rbErr)
			}
			session.RolledBack = true
			return session, fmt.Errorf("failed to apply fix: %w", err)
		}
		o.logFixDiff(log, current, fix, attempt)

		result := o.testFix(ctx, jobPath)
		session.Attempts = append(session.Attempts, Attempt{
			Number:      attempt,
			Code:        fix,
			Passed:      result.Passed,
			FailureText: result.FailureText,
		})

		if result.Passed {
			// Success: the applied fix stays on disk, the backup is kept but
			// never applied, and no further attempts run.
			log.Info("Fix successful.", zap.Int("attempt", attempt))
			session.Healed = true
			return session, nil
		}

		log.Warn("Fix failed testing.", zap.Int("attempt", attempt), zap.String("error", truncate(result.FailureText, 500)))
		current = fix
	}

	if stalled {
		log.Warn("Healing stalled; generator produced no new fix.")
	} else {
		log.Warn("All healing attempts exhausted.", zap.Int("attempts", len(session.Attempts)))
	}

	if o.cfg.EnableRollback {
		restored, err := o.rollback.Rollback(jobPath, session.BackupPath)
		if err != nil {
			return session, &RollbackError{JobPath: jobPath, Err: err}
		}
		if !restored {
			return session, &RollbackError{JobPath: jobPath}
		}
		session.RolledBack = true
	}
	return session, nil
}

// testFix runs the job under the configured test timeout. A timeout surfaces
// as an ordinary failed run.
func (o *Orchestrator) testFix(ctx context.Context, jobPath string) RunResult {
	if o.cfg.TestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.TestTimeout)
		defer cancel()
	}
	return o.runner.Run(ctx, jobPath)
}

// schemaSample reads a small sample of the data file for prompt context. An
// unreadable data file is reported in-band; schema context is a hint, not a
// requirement.
func (o *Orchestrator) schemaSample(dataPath string, log *zap.Logger) string {
	t, err := table.SampleFile(dataPath, schemaSampleRows)
	if err != nil {
		log.Warn("Could not sample data schema.", zap.Error(err))
		return fmt.Sprintf("Could not read data: %v", err)
	}
	return t.SchemaSample()
}

// logFixDiff logs what the generator changed relative to the previously
// applied code.
func (o *Orchestrator) logFixDiff(log *zap.Logger, before, after string, attempt int) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)

	inserted, deleted := 0, 0
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			inserted += len(d.Text)
		case diffmatchpatch.DiffDelete:
			deleted += len(d.Text)
		}
	}
	log.Info("Fix applied.",
		zap.Int("attempt", attempt),
		zap.Int("bytes_added", inserted),
		zap.Int("bytes_removed", deleted))
	if ce := log.Check(zap.DebugLevel, "Fix diff."); ce != nil {
		ce.Write(zap.Int("attempt", attempt), zap.String("diff", dmp.DiffPrettyText(diffs)))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
