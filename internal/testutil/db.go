package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"turnos/internal/models"
)

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every pooled connection to :memory: would otherwise see its own empty database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.Migrate(db))
	return db
}

func SeedCatalogs(t *testing.T, db *gorm.DB) (models.Level, models.Municipality, models.Subject) {
	t.Helper()
	l := models.Level{Name: "Bachillerato"}
	m := models.Municipality{Name: "CDMX"}
	s := models.Subject{Name: "Inscripción"}
	require.NoError(t, db.Create(&l).Error)
	require.NoError(t, db.Create(&m).Error)
	require.NoError(t, db.Create(&s).Error)
	return l, m, s
}
