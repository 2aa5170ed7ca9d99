// Package dbinterfaces provides shared database interface definitions.
package dbinterfaces

import (
	"context"
	"io"
)

// Database defines the common interface for database operations
type Database interface {
	io.Closer // Close() error
}

// StatsProvider defines the interface for stores that provide statistics
type StatsProvider interface {
	GetStats(ctx context.Context) (map[string]any, error)
}

// CleanupProvider defines the interface for stores that support cleanup operations
type CleanupProvider interface {
	CleanupExpired(ctx context.Context) (int64, error)
}
