package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const sqliteFileParams = "_foreign_keys=1&_journal_mode=WAL&_busy_timeout=5000"

func openSQLite(cfg Config) (*gorm.DB, error) {
	dsn, memory, err := sqliteDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}

	// A shared in-memory database reports SQLITE_LOCKED instead of waiting on contention,
	// so writers are funnelled through a single connection.
	if memory {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// sqliteDSN resolves the connection string and reports whether it is an in-memory database.
// File databases get their parent directory created.
func sqliteDSN(cfg Config) (string, bool, error) {
	if dsn := strings.TrimSpace(cfg.DSN); dsn != "" {
		memory := strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, ":memory:")
		return dsn, memory, nil
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" || strings.EqualFold(path, ":memory:") {
		return "file::memory:?cache=shared&_foreign_keys=1", true, nil
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", false, fmt.Errorf("sqlite: create data directory: %w", err)
		}
	}
	return "file:" + filepath.ToSlash(path) + "?" + sqliteFileParams, false, nil
}
