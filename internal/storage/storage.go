// Package storage records publish history in SQLite through GORM.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var gormLogLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

// DB is the publish history store.
type DB struct {
	db *gorm.DB
}

// Config holds database configuration.
type Config struct {
	DatabasePath string
	LogLevel     string // silent (default), error, warn, info
}

// InitDB opens the history database, creating its directory when needed, and
// migrates the schema.
func InitDB(cfg Config) (*DB, error) {
	if cfg.DatabasePath == "" {
		return nil, fmt.Errorf("database path is required")
	}

	dsn := cfg.DatabasePath
	if dsn != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		// publish-all records from several goroutines at once
		dsn += "?_busy_timeout=5000"
	}

	level, ok := gormLogLevels[strings.ToLower(cfg.LogLevel)]
	if !ok {
		level = logger.Silent
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", cfg.DatabasePath, err)
	}

	if err := db.AutoMigrate(&PublishRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	return sqlDB.Close()
}
