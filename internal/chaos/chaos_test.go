// File: internal/chaos/chaos_test.go
package chaos

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pipemedic/pipemedic/internal/table"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUnleash_DefaultRenames(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "uid,customer_name,email\n1,Alice,alice@example.com\n")

	applied, err := Unleash(path, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"uid": "user_id", "customer_name": "full_name"}, applied)

	tbl, err := table.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"user_id", "full_name", "email"}, tbl.ColumnNames())

	col, ok := tbl.Column("full_name")
	require.True(t, ok)
	assert.Equal(t, "Alice", col.Values[0].Raw)
}

func TestUnleash_NoMatchingColumns(t *testing.T) {
	t.Parallel()

	original := "id,name\n1,Alice\n"
	path := writeCSV(t, original)

	applied, err := Unleash(path, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, applied)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data), "file is untouched when nothing matches")
}

func TestUnleash_CustomRenames(t *testing.T) {
	t.Parallel()

	path := writeCSV(t, "id,name\n1,Alice\n")

	applied, err := Unleash(path, map[string]string{"id": "identifier"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "identifier"}, applied)

	tbl, err := table.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, tbl.HasColumn("identifier"))
	assert.False(t, tbl.HasColumn("id"))
}

func TestUnleash_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Unleash(filepath.Join(t.TempDir(), "ghost.csv"), nil, zap.NewNop())
	assert.Error(t, err)
}
