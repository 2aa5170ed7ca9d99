package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Exists checks if a database file exists
func Exists(dbPath string) bool {
	_, err := os.Stat(dbPath)
	return !errors.Is(err, fs.ErrNotExist)
}

// GetDatabaseSize returns the size of the database file in bytes
func GetDatabaseSize(dbPath string) (int64, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to get database file info: %w", err)
	}

	return info.Size(), nil
}

// Vacuum runs VACUUM on the database to reclaim space
func Vacuum(ctx context.Context, db *Database) error {
	if _, err := db.DB().ExecContext(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

// GetDatabaseInfo returns information about the database
func GetDatabaseInfo(ctx context.Context, db *Database) (map[string]any, error) {
	info := make(map[string]any)

	var version string
	if err := db.DB().QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return nil, fmt.Errorf("failed to get SQLite version: %w", err)
	}
	info["sqlite_version"] = version
	info["path"] = db.Path()

	if db.Path() != MemoryPath {
		if size, err := GetDatabaseSize(db.Path()); err == nil {
			info["file_size_bytes"] = size
		}
	}

	var tableCount int
	if err := db.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table'").Scan(&tableCount); err != nil {
		return nil, fmt.Errorf("failed to get table count: %w", err)
	}
	info["table_count"] = tableCount

	return info, nil
}
