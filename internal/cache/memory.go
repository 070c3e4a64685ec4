package cache

import (
	"context"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sugarcypher/sweetguard/internal/models"
)

const defaultMaxEntries = 10000

// Memory is a bounded in-process LRU. Entries also drop out after ttl of wall
// clock time; a ttl of zero keeps them until evicted.
type Memory struct {
	lru *expirable.LRU[string, models.CacheEntry]
}

func NewMemory(maxEntries int, ttl time.Duration) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{lru: expirable.NewLRU[string, models.CacheEntry](maxEntries, nil, ttl)}
}

func (m *Memory) Get(_ context.Context, barcode string) (models.CacheEntry, bool, error) {
	entry, ok := m.lru.Get(barcode)
	return entry, ok, nil
}

func (m *Memory) Set(_ context.Context, entry models.CacheEntry) error {
	m.lru.Add(entry.Barcode, entry)
	return nil
}

func (m *Memory) Delete(_ context.Context, barcode string) error {
	m.lru.Remove(barcode)
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.lru.Purge()
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	keys := m.lru.Keys()
	sort.Strings(keys)
	return keys, nil
}
