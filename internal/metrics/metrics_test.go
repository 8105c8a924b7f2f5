// File: internal/metrics/metrics_test.go
package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestManager_Counters(t *testing.T) {
	t.Parallel()

	m := NewManager(zap.NewNop())

	m.RecordPipelineRun("success", 2*time.Second)
	m.RecordPipelineRun("failure", time.Second)
	m.RecordPipelineRun("failure", time.Second)
	m.RecordError("schema_drift")
	m.RecordHealing("healed")
	m.RecordHealing("rolled_back")
	m.RecordCost(0.0125)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pipelineRuns.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pipelineErrors.WithLabelValues("schema_drift")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healingAttempts.WithLabelValues("healed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.healingAttempts.WithLabelValues("rolled_back")))
	assert.InDelta(t, 0.0125, testutil.ToFloat64(m.aiCost), 1e-9)
}

func TestManager_GatherExposesAllFamilies(t *testing.T) {
	t.Parallel()

	m := NewManager(zap.NewNop())
	m.RecordPipelineRun("success", time.Second)
	m.RecordError("unknown")
	m.RecordHealing("healed")
	m.RecordCost(0.01)

	families, err := m.Gather().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"pipemedic_pipeline_runs_total",
		"pipemedic_pipeline_errors_total",
		"pipemedic_healing_attempts_total",
		"pipemedic_pipeline_duration_seconds",
		"pipemedic_ai_cost_total",
		"pipemedic_last_run_timestamp_seconds",
	} {
		assert.True(t, names[want], "missing metric family %s", want)
	}
}

// Two managers must be constructible side by side; a shared default registry
// would panic on the second registration.
func TestManager_IndependentRegistries(t *testing.T) {
	t.Parallel()

	a := NewManager(zap.NewNop())
	b := NewManager(zap.NewNop())

	a.RecordHealing("healed")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.healingAttempts.WithLabelValues("healed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.healingAttempts.WithLabelValues("healed")))
}
