package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sugarcypher/sweetguard/internal/models"
)

const scanBatch = 500

// Redis shares entries between resolver instances. Each entry is a JSON
// document under prefix+barcode and carries the cache TTL as its expiry.
type Redis struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(rdb redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

// DialRedis connects and pings the server before handing out the client
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (r *Redis) Get(ctx context.Context, barcode string) (models.CacheEntry, bool, error) {
	raw, err := r.rdb.Get(ctx, r.prefix+barcode).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.CacheEntry{}, false, nil
	}
	if err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("redis cache get %s: %w", barcode, err)
	}
	var entry models.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return models.CacheEntry{}, false, fmt.Errorf("redis cache decode %s: %w", barcode, err)
	}
	return entry, true, nil
}

func (r *Redis) Set(ctx context.Context, entry models.CacheEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("redis cache encode %s: %w", entry.Barcode, err)
	}
	if err := r.rdb.Set(ctx, r.prefix+entry.Barcode, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis cache set %s: %w", entry.Barcode, err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, barcode string) error {
	return r.rdb.Del(ctx, r.prefix+barcode).Err()
}

// Clear removes only keys under the prefix, never the whole database
func (r *Redis) Clear(ctx context.Context) error {
	return r.scan(ctx, func(keys []string) error {
		return r.rdb.Del(ctx, keys...).Err()
	})
}

func (r *Redis) Keys(ctx context.Context) ([]string, error) {
	// SCAN may return a key more than once
	seen := map[string]struct{}{}
	err := r.scan(ctx, func(keys []string) error {
		for _, k := range keys {
			seen[strings.TrimPrefix(k, r.prefix)] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (r *Redis) scan(ctx context.Context, fn func(keys []string) error) error {
	var cursor uint64
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, r.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis cache scan: %w", err)
		}
		if len(keys) > 0 {
			if err := fn(keys); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
