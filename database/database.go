package database

import (
	"fmt"

	"examgrader/config"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDatabase opens the Postgres connection. A missing database configuration
// returns (nil, nil) rather than an error so the service can still start and
// report 503 for store-backed actions.
func NewDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.Host == "" || cfg.Database.Name == "" {
		log.Warn().Msg("Database configuration incomplete. Attempt storage will be unavailable.")
		return nil, nil
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.Database.Host, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.Port)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Str("host", cfg.Database.Host).Str("dbname", cfg.Database.Name).Msg("Database connection established")
	return db, nil
}
