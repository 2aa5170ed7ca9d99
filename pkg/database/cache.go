package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/lepinkainen/feed-widget/pkg/dbinterfaces"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CacheEntry represents a generic cache entry
type CacheEntry struct {
	ID        int64
	Key       string
	Value     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Cache provides a key/value cache with expiry on top of the database
type Cache struct {
	db        *Database
	tableName string
}

var (
	_ dbinterfaces.StatsProvider   = (*Cache)(nil)
	_ dbinterfaces.CleanupProvider = (*Cache)(nil)
)

// NewCache creates a cache stored in tableName and creates the table if needed
func NewCache(ctx context.Context, db *Database, tableName string) (*Cache, error) {
	if !tableNamePattern.MatchString(tableName) {
		return nil, fmt.Errorf("invalid cache table name %q", tableName)
	}

	c := &Cache{db: db, tableName: tableName}
	if err := c.initialize(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) initialize(ctx context.Context) error {
	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			key TEXT NOT NULL UNIQUE,
			value TEXT NOT NULL,
			expires_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_%[1]s_expires ON %[1]s(expires_at);
	`, c.tableName)

	return c.db.ExecuteSchema(ctx, schema)
}

// Get retrieves a value that has not expired yet
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = ? AND expires_at > ?`, c.tableName)

	var value string
	err := c.db.DB().QueryRowContext(ctx, query, key, time.Now().UTC()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get cache value: %w", err)
	}

	return value, true, nil
}

// Set stores a value that expires after ttl
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	now := time.Now().UTC()

	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, updated_at = excluded.updated_at
	`, c.tableName)

	if _, err := c.db.DB().ExecContext(ctx, query, key, value, now.Add(ttl), now, now); err != nil {
		return fmt.Errorf("failed to set cache value: %w", err)
	}
	return nil
}

// CleanupExpired removes expired entries and returns how many were deleted
func (c *Cache) CleanupExpired(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, c.tableName)

	result, err := c.db.DB().ExecContext(ctx, query, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired entries: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected > 0 {
		slog.Debug("Cleaned up expired cache entries", "table", c.tableName, "count", rowsAffected)
	}
	return rowsAffected, nil
}

// GetStats returns cache statistics
func (c *Cache) GetStats(ctx context.Context) (map[string]any, error) {
	now := time.Now().UTC()

	var total, valid int64
	if err := c.db.DB().QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.tableName)).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to get total entries: %w", err)
	}
	if err := c.db.DB().QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE expires_at > ?`, c.tableName), now).Scan(&valid); err != nil {
		return nil, fmt.Errorf("failed to get valid entries: %w", err)
	}

	return map[string]any{
		"table":           c.tableName,
		"total_entries":   total,
		"valid_entries":   valid,
		"expired_entries": total - valid,
	}, nil
}

// Clear removes all entries from the cache
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.DB().ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, c.tableName)); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// GetAll returns all valid entries, most recently updated first
func (c *Cache) GetAll(ctx context.Context) ([]CacheEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, key, value, expires_at, created_at, updated_at
		FROM %s
		WHERE expires_at > ?
		ORDER BY updated_at DESC, id DESC
	`, c.tableName)

	rows, err := c.db.DB().QueryContext(ctx, query, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get all cache entries: %w", err)
	}
	defer rows.Close()

	var entries []CacheEntry
	for rows.Next() {
		var entry CacheEntry
		if err := rows.Scan(&entry.ID, &entry.Key, &entry.Value, &entry.ExpiresAt, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
