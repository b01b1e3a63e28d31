package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "fame.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	defer db.Close()

	var tables []string
	err = db.SQL.Select(&tables, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	require.NoError(t, err)
	assert.Subset(t, tables, []string{"diets", "execution_metrics", "plans", "users"})

	t.Run("ReopenIsIdempotent", func(t *testing.T) {
		again, err := NewDB(path)
		require.NoError(t, err)
		require.NoError(t, again.Close())
	})
}
