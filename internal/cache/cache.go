// Package cache stores accepted resolution results keyed by raw barcode.
// Backends only store and return entries; validity against the configured
// TTL is decided by the resolver with its own clock.
package cache

import (
	"context"

	"github.com/sugarcypher/sweetguard/internal/models"
)

// Cache is safe for concurrent use by multiple goroutines
type Cache interface {
	// Get returns the entry for barcode and whether one was found
	Get(ctx context.Context, barcode string) (models.CacheEntry, bool, error)
	Set(ctx context.Context, entry models.CacheEntry) error
	Delete(ctx context.Context, barcode string) error
	Clear(ctx context.Context) error
	// Keys returns every cached barcode in ascending order
	Keys(ctx context.Context) ([]string, error)
}
