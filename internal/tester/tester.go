package tester

import (
	"path/filepath"
	"testing"

	"github.com/emrgen/revision/internal/config"
	"github.com/emrgen/revision/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// TestDB opens a fresh migrated sqlite database that lives for the duration
// of the test.
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := config.OpenSqlite(filepath.Join(t.TempDir(), "revision.db"))
	require.NoError(t, err)

	require.NoError(t, model.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return db
}
