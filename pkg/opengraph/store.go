package opengraph

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lepinkainen/feed-widget/pkg/database"
	"github.com/lepinkainen/feed-widget/pkg/dbinterfaces"
)

// Store caches fetched metadata in SQLite
type Store struct {
	db    *database.Database
	cache *database.Cache
	ttl   time.Duration
}

var (
	_ dbinterfaces.Database        = (*Store)(nil)
	_ dbinterfaces.StatsProvider   = (*Store)(nil)
	_ dbinterfaces.CleanupProvider = (*Store)(nil)
)

// OpenStore opens the cache database at path and prunes expired entries
func OpenStore(ctx context.Context, path string, ttl time.Duration) (*Store, error) {
	if path == "" {
		path = DefaultDBFile
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	db, err := database.NewDatabase(database.Config{Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open opengraph cache: %w", err)
	}

	cache, err := database.NewCache(ctx, db, CacheTable)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{db: db, cache: cache, ttl: ttl}
	if removed, err := store.CleanupExpired(ctx); err != nil {
		slog.Warn("Failed to cleanup expired OpenGraph cache", "error", err)
	} else if removed > 0 {
		slog.Info("Pruned OpenGraph cache", "removed", removed)
	}

	slog.Debug("OpenGraph cache initialized", "path", path, "ttl", ttl)
	return store, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the cached entry for url, including cached failures
func (s *Store) Get(ctx context.Context, url string) (*Data, error) {
	raw, found, err := s.cache.Get(ctx, url)
	if err != nil || !found {
		return nil, err
	}

	var data Data
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to decode cached opengraph data: %w", err)
	}
	return &data, nil
}

// Save stores data. Failures are kept for FailureCacheTTL so a broken page
// is not refetched by every widget.
func (s *Store) Save(ctx context.Context, data *Data) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode opengraph data: %w", err)
	}

	ttl := s.ttl
	if !data.Success {
		ttl = FailureCacheTTL
	}
	return s.cache.Set(ctx, data.URL, string(encoded), ttl)
}

// CleanupExpired removes expired cache entries
func (s *Store) CleanupExpired(ctx context.Context) (int64, error) {
	return s.cache.CleanupExpired(ctx)
}

// GetStats returns statistics about the cache
func (s *Store) GetStats(ctx context.Context) (map[string]any, error) {
	stats, err := s.cache.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	info, err := database.GetDatabaseInfo(ctx, s.db)
	if err != nil {
		return nil, err
	}
	for k, v := range info {
		stats[k] = v
	}
	return stats, nil
}

// Clear removes every cached entry and compacts the file
func (s *Store) Clear(ctx context.Context) error {
	if err := s.cache.Clear(ctx); err != nil {
		return err
	}
	return database.Vacuum(ctx, s.db)
}

// Entries returns all live cache entries decoded
func (s *Store) Entries(ctx context.Context) ([]*Data, error) {
	entries, err := s.cache.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*Data, 0, len(entries))
	for _, e := range entries {
		var data Data
		if err := json.Unmarshal([]byte(e.Value), &data); err != nil {
			slog.Warn("Skipping undecodable cache entry", "key", e.Key, "error", err)
			continue
		}
		out = append(out, &data)
	}
	return out, nil
}
