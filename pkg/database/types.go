// Package database wraps SQLite connections shared by the caches.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lepinkainen/feed-widget/pkg/dbinterfaces"
	"github.com/lepinkainen/feed-widget/pkg/filesystem"
)

var (
	// dbCache stores active database connections, keyed by path
	dbCache = make(map[string]*Database)
	// cacheMutex protects the dbCache
	cacheMutex = &sync.Mutex{}
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// Database represents a thread-safe database connection
type Database struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// Ensure Database implements dbinterfaces.Database
var _ dbinterfaces.Database = (*Database)(nil)

// Config holds database configuration
type Config struct {
	Path    string
	Driver  string
	Timeout time.Duration
}

// DefaultConfig returns the default database configuration
func DefaultConfig() Config {
	return Config{
		Driver:  "sqlite",
		Timeout: 30 * time.Second,
	}
}

// NewDatabase opens the database at config.Path. Connections to the same
// file are shared; in-memory databases are never shared.
func NewDatabase(config Config) (*Database, error) {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	memory := config.Path == MemoryPath
	if !memory {
		if db, ok := dbCache[config.Path]; ok {
			return db, nil
		}
		if err := filesystem.EnsureDirectoryExists(config.Path); err != nil {
			return nil, err
		}
	}

	if config.Driver == "" {
		config.Driver = "sqlite"
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if memory {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(time.Hour)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	if config.Driver == "sqlite" {
		if err := configureSQLite(ctx, db, memory); err != nil {
			closeQuietly(db)
			return nil, err
		}
	}

	if err := db.PingContext(ctx); err != nil {
		closeQuietly(db)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	database := &Database{
		db:     db,
		dbPath: config.Path,
	}
	if !memory {
		dbCache[config.Path] = database
	}

	slog.Debug("Database opened", "path", config.Path)
	return database, nil
}

func configureSQLite(ctx context.Context, db *sql.DB, memory bool) error {
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil { // 5 second timeout for lock contention
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if !memory {
		var journalMode string
		if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&journalMode); err != nil {
			return fmt.Errorf("failed to read journal mode: %w", err)
		}
		if !strings.EqualFold(journalMode, "wal") {
			if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil { // concurrent readers/writers
				return fmt.Errorf("failed to enable WAL: %w", err)
			}
		}
	}

	pragmas := []string{
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=memory",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}

// Close closes the database connection
func (db *Database) Close() error {
	cacheMutex.Lock()
	defer cacheMutex.Unlock()

	if cached, ok := dbCache[db.dbPath]; ok && cached == db {
		delete(dbCache, db.dbPath)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

// DB returns the underlying sql.DB instance (thread-safe)
func (db *Database) DB() *sql.DB {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.db
}

// Path returns the database file path
func (db *Database) Path() string {
	return db.dbPath
}

// ExecuteSchema executes a schema statement
func (db *Database) ExecuteSchema(ctx context.Context, schema string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, err := db.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}
