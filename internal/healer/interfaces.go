// File: internal/healer/interfaces.go
package healer

import (
	"context"
)

// FixGenerator is the external capability that turns a failure description
// and the current job source into a candidate replacement source. It must
// return source text only. Implementations should degrade gracefully; the
// orchestrator treats a returned error as "no new fix available" for that
// attempt rather than aborting the session.
type FixGenerator interface {
	Generate(ctx context.Context, req FixRequest) (string, error)
}

// RunResult is the outcome of one test-run of the job.
type RunResult struct {
	// Passed is true when the job exited successfully.
	Passed bool
	// FailureText carries the job's failure transcript (typically stderr)
	// when Passed is false.
	FailureText string
}

// JobRunner executes the job synchronously to test an applied fix. A timeout
// or inability to start the job is reported the same way as any non-zero
// exit: Passed=false with whatever transcript is available.
type JobRunner interface {
	Run(ctx context.Context, jobPath string) RunResult
}
