// Package repositories provides the data access layer for the credit
// ledger: wallets, transactions, entitlements, intents, and
// inconsistency records.
package repositories

import (
	"fmt"
	"log"
	"os"
	"time"

	"creditledger/internal/config"
	"creditledger/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DBConfig holds database connection pool configuration.
type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultDBConfig is the pooling configuration used when none is given.
var DefaultDBConfig = DBConfig{
	MaxIdleConns:    10,
	MaxOpenConns:    100,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: 30 * time.Minute,
}

// LoadDBConfig reads the pooling configuration from the environment,
// falling back to DefaultDBConfig for anything unset.
func LoadDBConfig() DBConfig {
	return DBConfig{
		MaxIdleConns:    config.GetIntEnv("DB_MAX_IDLE_CONNS", DefaultDBConfig.MaxIdleConns),
		MaxOpenConns:    config.GetIntEnv("DB_MAX_OPEN_CONNS", DefaultDBConfig.MaxOpenConns),
		ConnMaxLifetime: time.Duration(config.GetIntEnv("DB_CONN_MAX_LIFETIME_MINUTES", 60)) * time.Minute,
		ConnMaxIdleTime: time.Duration(config.GetIntEnv("DB_CONN_MAX_IDLE_MINUTES", 30)) * time.Minute,
	}
}

// Connect opens the postgres database, configures pooling, and runs the
// schema migration. The handle is returned for explicit injection into
// the repositories; there is no package-level database state.
func Connect(cfg DBConfig) (*gorm.DB, error) {
	dsn := "host=" + config.GetEnv("DB_HOST", "localhost") +
		" user=" + config.GetEnv("DB_USER", "postgres") +
		" password=" + config.GetEnv("DB_PASSWORD", "postgres") +
		" dbname=" + config.GetEnv("DB_NAME", "creditledger") +
		" port=" + config.GetEnv("DB_PORT", "5432") +
		" sslmode=" + config.GetEnv("DB_SSLMODE", "disable")

	logLevel := logger.Info
	if config.IsProduction() {
		logLevel = logger.Warn
	}
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the ledger schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Wallet{},
		&models.Transaction{},
		&models.Entitlement{},
		&models.TransactionIntent{},
		&models.Inconsistency{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
