package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/talhajamadar1013-star/Qmail/internal/config"
	"github.com/talhajamadar1013-star/Qmail/internal/db/models"
)

// Initialize opens the Postgres connection pool and migrates the schema.
// The handle is returned to the caller; nothing in this package keeps
// global state.
func Initialize(cfg *config.Configuration) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		// Warn keeps the SQL trace (and the bound key material in it) out
		// of the logs during normal operation.
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}

	database, err := gorm.Open(postgres.Open(cfg.Database.DSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)

	if err := RunMigrations(database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return database, nil
}

// RunMigrations applies the schema. Exported so tests can migrate an
// in-memory database without going through Initialize.
func RunMigrations(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.QuantumKey{},
		&models.EmailMetadata{},
	)
}
