package repos

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/shaggydog-ai/shaggydog/internal/db/models"
)

// setupTestDB opens a per-test in-memory SQLite database with all migrations
// applied. The connection is closed when the test finishes.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to create in-memory database")

	err = db.AutoMigrate(
		&models.User{},
		&models.Job{},
		&models.StageImage{},
	)
	require.NoError(t, err, "Failed to run migrations")

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil && sqlDB != nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// newTestJob builds a valid processing job for the owner
func newTestJob(ownerID uint) *models.Job {
	return &models.Job{
		OwnerID:       ownerID,
		OriginalImage: []byte("portrait-bytes"),
		StageCount:    models.DefaultStageCount,
		Status:        models.JobStatusProcessing,
	}
}
