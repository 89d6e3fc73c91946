package database

import (
	"fmt"
	"time"

	"github.com/siamfx/backoffice/internal/config"
	"github.com/siamfx/backoffice/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the database connection with configuration
func InitDB(dbConfig config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(mysql.Open(dbConfig.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}

	sqlDB.SetMaxIdleConns(dbConfig.MaxIdle)
	sqlDB.SetMaxOpenConns(dbConfig.MaxConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// Migrate runs schema migrations for all models
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// Reference data
		&models.Branch{},
		&models.Currency{},
		&models.Country{},
		&models.CurrencyBalance{},

		// Counter business
		&models.ExchangeTransaction{},
		&models.TransactionSequence{},

		// Compliance
		&models.Reservation{},
		&models.TriggerRule{},
		&models.ReportFieldDefinition{},
		&models.AMLOReport{},
		&models.ReportSerial{},

		// BOT monthly tables
		&models.BOTBuyFX{},
		&models.BOTSellFX{},
		&models.BOTFCD{},
		&models.BOTProvider{},
	)
}
