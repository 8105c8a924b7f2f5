// File: internal/runner/runner.go
package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/healer"
)

// ProcessRunner tests a job by executing it in a subprocess under the
// configured interpreter. It implements healer.JobRunner.
type ProcessRunner struct {
	interpreter string
	logger      *zap.Logger
}

// NewProcessRunner builds a runner that invokes `interpreter jobPath`.
func NewProcessRunner(interpreter string, logger *zap.Logger) *ProcessRunner {
	return &ProcessRunner{
		interpreter: interpreter,
		logger:      logger.Named("runner"),
	}
}

// Run executes the job synchronously and blocks until it exits. A non-zero
// exit, a start failure, or a context timeout all report Passed=false with
// the captured stderr as the failure transcript.
func (r *ProcessRunner) Run(ctx context.Context, jobPath string) healer.RunResult {
	cmd := exec.CommandContext(ctx, r.interpreter, jobPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		r.logger.Debug("Job run passed.", zap.String("job", jobPath))
		return healer.RunResult{Passed: true}
	}

	failure := strings.TrimSpace(stderr.String())
	if failure == "" {
		// The process may have died before writing anything (e.g. killed on
		// timeout); fall back to the exec error so the transcript is never
		// empty.
		failure = err.Error()
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			failure = "Timeout: job test-run exceeded its deadline: " + err.Error()
		}
	}

	r.logger.Debug("Job run failed.", zap.String("job", jobPath), zap.Error(err))
	return healer.RunResult{Passed: false, FailureText: failure}
}
