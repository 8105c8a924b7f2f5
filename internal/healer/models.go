// File: internal/healer/models.go
package healer

import (
	"fmt"

	"github.com/pipemedic/pipemedic/internal/analyzer"
)

// FixRequest carries everything the fix generator needs for one attempt. For
// attempts after the first, PreviousFix and PreviousError hold the prior
// attempt's generated code and the failure it produced, letting the generator
// correct its own mistake instead of repeating it.
type FixRequest struct {
	// ErrorText is the original failure transcript the session started from.
	ErrorText string
	// Source is the code most recently supplied to the generator: the
	// original source on attempt 1, the previously applied fix afterwards.
	Source string
	// SchemaSample describes the data's column names and inferred types.
	SchemaSample string
	// Attempt is the 1-based attempt number.
	Attempt int
	// PreviousFix and PreviousError are empty on the first attempt.
	PreviousFix   string
	PreviousError string
	// Diagnosis is contextual hinting only; it never changes control flow.
	Diagnosis *analyzer.Diagnosis
}

// Attempt records one completed fix/apply/test cycle. Records are immutable
// once appended to the session; the next attempt reads only the most recent
// entry.
type Attempt struct {
	Number      int
	Code        string
	Passed      bool
	FailureText string
}

// Session is the result of one healing session: a single invocation of the
// orchestrator's attempt loop for a single failing job, bounded by a
// backup/rollback pair.
type Session struct {
	ID         string
	JobPath    string
	DataPath   string
	BackupPath string
	Diagnosis  analyzer.Diagnosis
	Attempts   []Attempt
	// Healed is true when some attempt's test-run passed. The applied fix
	// stays on disk and the backup is not applied.
	Healed bool
	// RolledBack is true when the pre-session source was restored.
	RolledBack bool
}

// RollbackError reports that restoring the pre-session source failed, which
// means the job's source may still be broken. It is distinct from "healing
// failed" so callers can escalate instead of assuming a clean rollback.
type RollbackError struct {
	JobPath string
	Err     error
}

func (e *RollbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rollback of %s failed: %v", e.JobPath, e.Err)
	}
	return fmt.Sprintf("rollback of %s failed: no backup available", e.JobPath)
}

func (e *RollbackError) Unwrap() error { return e.Err }
