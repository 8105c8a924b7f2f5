// File: internal/runner/runner_test.go
package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not portable to windows")
	}
}

func TestRun_Pass(t *testing.T) {
	t.Parallel()
	requireUnix(t)

	r := NewProcessRunner("sh", zap.NewNop())
	res := r.Run(context.Background(), writeScript(t, "exit 0\n"))

	assert.True(t, res.Passed)
	assert.Empty(t, res.FailureText)
}

func TestRun_FailureCapturesStderr(t *testing.T) {
	t.Parallel()
	requireUnix(t)

	r := NewProcessRunner("sh", zap.NewNop())
	res := r.Run(context.Background(), writeScript(t, "echo \"KeyError: 'uid'\" >&2\nexit 1\n"))

	assert.False(t, res.Passed)
	assert.Equal(t, "KeyError: 'uid'", res.FailureText)
}

func TestRun_FailureWithoutStderrUsesExitError(t *testing.T) {
	t.Parallel()
	requireUnix(t)

	r := NewProcessRunner("sh", zap.NewNop())
	res := r.Run(context.Background(), writeScript(t, "exit 3\n"))

	assert.False(t, res.Passed)
	assert.Contains(t, res.FailureText, "exit status 3")
}

func TestRun_MissingInterpreter(t *testing.T) {
	t.Parallel()

	r := NewProcessRunner("definitely-not-an-interpreter", zap.NewNop())
	res := r.Run(context.Background(), "job.py")

	assert.False(t, res.Passed)
	assert.NotEmpty(t, res.FailureText)
}

func TestRun_TimeoutReportsDeadline(t *testing.T) {
	t.Parallel()
	requireUnix(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	r := NewProcessRunner("sh", zap.NewNop())
	res := r.Run(ctx, writeScript(t, "sleep 5\n"))

	assert.False(t, res.Passed)
	assert.Contains(t, res.FailureText, "Timeout")
}
