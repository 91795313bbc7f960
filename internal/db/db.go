package db

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"dispatch-service/internal/config"
)

// New connects to the configured store and applies pending migrations.
func New(cfg *config.Config, log zerolog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DB.DSN)
	case config.DriverPostgres, "":
		dialector = postgres.Open(cfg.DB.DSN)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DB.Driver)
	}
	return Open(dialector, cfg.DB, log)
}

// Open is New with an explicit dialector; tests pass an in-memory sqlite one.
func Open(dialector gorm.Dialector, cfg config.DBConfig, log zerolog.Logger) (*gorm.DB, error) {
	database, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(log, 200*time.Millisecond),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}

	if database.Dialector.Name() == "sqlite" {
		// sqlite allows a single writer; one connection keeps pragmas and
		// in-memory databases alive for the life of the pool.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		_ = database.Exec(`PRAGMA journal_mode=WAL`).Error
		if err := database.Exec(`PRAGMA busy_timeout=5000`).Error; err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		if err := database.Exec(`PRAGMA foreign_keys=ON`).Error; err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
	}

	if err := runMigrations(database); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log.Debug().Str("dialect", database.Dialector.Name()).Msg("database ready")
	return database, nil
}
