package persistence

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pesaflow/backend/internal/infrastructure/persistence/models"
)

// setupTestDB opens an in-memory sqlite database with the full schema
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.CustomerModel{},
		&models.PaymentModel{},
		&models.InvoiceModel{},
		&models.PaymentPlanModel{},
		&models.ReferenceCounterModel{},
		&models.IntegrationModel{},
		&models.APILogModel{},
		&models.NotificationModel{},
		&models.NotificationPreferenceModel{},
	))

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
