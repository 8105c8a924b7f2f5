// File: internal/pipeline/pipeline_test.go
package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/analyzer"
	"github.com/pipemedic/pipemedic/internal/config"
	"github.com/pipemedic/pipemedic/internal/table"
)

func testPipeline(t *testing.T, csvData string) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()

	dataPath := filepath.Join(dir, "users.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(csvData), 0o644))

	outPath := filepath.Join(dir, "out", "processed.csv")
	cfg := config.PipelineConfig{
		DataPath:   dataPath,
		OutputPath: outPath,
		RenameMap: map[string]string{
			"uid":           "id",
			"customer_name": "name",
			"email":         "email_address",
			"signup_date":   "created_at",
		},
		RequiredCol: []string{"id", "name", "email_address", "created_at"},
	}
	return New(cfg, zap.NewNop()), outPath
}

func TestRun_Success(t *testing.T) {
	t.Parallel()

	p, outPath := testPipeline(t,
		"uid,customer_name,email,signup_date\n1,Alice,alice@example.com,2026-01-05\n2,Bob,bob@example.com,2026-01-06 08:30:00\n")

	require.NoError(t, p.Run())

	out, err := table.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "email_address", "created_at"}, out.ColumnNames())

	col, ok := out.Column("created_at")
	require.True(t, ok)
	assert.Equal(t, "2026-01-05T00:00:00Z", col.Values[0].Raw)
	assert.Equal(t, "2026-01-06T08:30:00Z", col.Values[1].Raw)
}

func TestRun_SchemaMismatch(t *testing.T) {
	t.Parallel()

	// Upstream renamed uid to user_id; the rename map no longer matches.
	p, _ := testPipeline(t,
		"user_id,customer_name,email,signup_date\n1,Alice,alice@example.com,2026-01-05\n")

	err := p.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Schema Mismatch! Missing columns after rename: [id]")

	// The marker text exists for the failure classifier's benefit.
	assert.Equal(t, analyzer.CategorySchemaDrift, analyzer.Analyze(err.Error()).Category)
}

func TestRun_ValidationFailureAggregates(t *testing.T) {
	t.Parallel()

	p, _ := testPipeline(t,
		"uid,customer_name,email,signup_date\n1,Alice,alice@example.com,2026-01-05\n1,,bob@example.com,2026-01-06\n")

	err := p.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Column 'id' contains 1 duplicate values")
	assert.Contains(t, err.Error(), "Column 'name' contains 1 null values")
	assert.Equal(t, analyzer.CategoryDataQuality, analyzer.Analyze(err.Error()).Category)
}

func TestRun_BadTimestamp(t *testing.T) {
	t.Parallel()

	p, _ := testPipeline(t,
		"uid,customer_name,email,signup_date\n1,Alice,alice@example.com,not-a-date\n")

	err := p.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ValueError: invalid literal for timestamp in 'created_at' row 1")
	assert.Equal(t, analyzer.CategoryTypeMismatch, analyzer.Analyze(err.Error()).Category)
}

func TestRun_MissingDataFile(t *testing.T) {
	t.Parallel()

	cfg := config.PipelineConfig{DataPath: filepath.Join(t.TempDir(), "ghost.csv")}
	err := New(cfg, zap.NewNop()).Run()
	assert.Error(t, err)
}
