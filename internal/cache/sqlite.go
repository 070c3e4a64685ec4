package cache

import (
	"context"
	"fmt"

	"github.com/sugarcypher/sweetguard/internal/database"
	"github.com/sugarcypher/sweetguard/internal/models"
)

// SQLite persists entries in the cache_entries table so they survive restarts
type SQLite struct {
	db database.DB
}

func NewSQLite(db database.DB) *SQLite {
	return &SQLite{db: db}
}

func (s *SQLite) Get(ctx context.Context, barcode string) (models.CacheEntry, bool, error) {
	entry, err := s.db.GetCacheEntry(ctx, barcode)
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("sqlite cache get %s: %w", barcode, err)
	}
	if entry == nil {
		return models.CacheEntry{}, false, nil
	}
	return *entry, true, nil
}

func (s *SQLite) Set(ctx context.Context, entry models.CacheEntry) error {
	if err := s.db.SaveCacheEntry(ctx, &entry); err != nil {
		return fmt.Errorf("sqlite cache set %s: %w", entry.Barcode, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, barcode string) error {
	return s.db.DeleteCacheEntry(ctx, barcode)
}

func (s *SQLite) Clear(ctx context.Context) error {
	return s.db.ClearCacheEntries(ctx)
}

func (s *SQLite) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.db.CacheBarcodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite cache keys: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}
