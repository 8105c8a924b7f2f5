// File: internal/healer/mocks_test.go
package healer_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pipemedic/pipemedic/internal/healer"
)

// mockGenerator is a testify mock for the fix-generator boundary, used where
// call counts and static returns are the point.
type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, req healer.FixRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// mockRunner is a testify mock for the job-runner boundary.
type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, jobPath string) healer.RunResult {
	args := m.Called(ctx, jobPath)
	return args.Get(0).(healer.RunResult)
}

// generatorFunc adapts a function into a FixGenerator for scenario stubs whose
// output depends on the request.
type generatorFunc func(ctx context.Context, req healer.FixRequest) (string, error)

func (f generatorFunc) Generate(ctx context.Context, req healer.FixRequest) (string, error) {
	return f(ctx, req)
}

// runnerFunc adapts a function into a JobRunner.
type runnerFunc func(ctx context.Context, jobPath string) healer.RunResult

func (f runnerFunc) Run(ctx context.Context, jobPath string) healer.RunResult {
	return f(ctx, jobPath)
}
