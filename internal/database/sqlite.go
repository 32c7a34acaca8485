package database

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"techtrack/internal/model"
	"techtrack/internal/repository"
)

// SQLite is the local development store. Path ":memory:" gives a private
// in-memory database, which the tests rely on.
type SQLite struct {
	Gorm *gorm.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across queries.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&model.User{}, &repository.AuditRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}

	slog.Info("database connected", "driver", "sqlite", "path", path)
	return &SQLite{Gorm: db}, nil
}

func (s *SQLite) Close() {
	if sqlDB, err := s.Gorm.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (s *SQLite) Health(ctx context.Context) error {
	sqlDB, err := s.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
