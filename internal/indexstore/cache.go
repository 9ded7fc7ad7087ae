package indexstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/redis"
)

const keyPrefix = "fidx:"

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache shares feature indexes between processes of the same run through
// Redis, keyed by run id.
type Cache struct {
	kv     KV
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache shares indexes through kv; entries expire after ttl.
func NewCache(kv KV, ttl time.Duration) *Cache {
	return &Cache{
		kv:     kv,
		ttl:    ttl,
		logger: slog.Default().With("component", "index-cache"),
	}
}

// Put publishes the keys of ix under runID.
func (c *Cache) Put(ctx context.Context, runID string, ix *features.Index) error {
	data, err := json.Marshal(ix.Keys())
	if err != nil {
		return fmt.Errorf("marshaling feature keys: %w", err)
	}
	if err := c.kv.Set(ctx, c.buildKey(runID), data, c.ttl); err != nil {
		return fmt.Errorf("storing index for run %s: %w", runID, err)
	}
	c.logger.Info("feature index shared", "run_id", runID, "keys", ix.Size())
	return nil
}

// Get returns the index of runID; ok is false when Redis has no entry.
func (c *Cache) Get(ctx context.Context, runID string) (*features.Index, bool, error) {
	key := c.buildKey(runID)
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		c.misses.Add(1)
		if pkgredis.IsNilError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("fetching index for run %s: %w", runID, err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(data), &keys); err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("decoding index for run %s: %w", runID, err)
	}
	ix, err := features.IndexFromKeys(keys)
	if err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("decoding index for run %s: %w", runID, err)
	}
	c.hits.Add(1)
	c.logger.Debug("index cache hit", "run_id", runID, "keys", ix.Size())
	return ix, true, nil
}

// GetOrLoad returns the shared index of runID, calling load and publishing
// its result on a miss. Concurrent callers for the same run share one load.
func (c *Cache) GetOrLoad(
	ctx context.Context,
	runID string,
	load func() (*features.Index, error),
) (*features.Index, error) {
	if ix, ok, err := c.Get(ctx, runID); err != nil {
		return nil, err
	} else if ok {
		return ix, nil
	}
	val, err, _ := c.group.Do(c.buildKey(runID), func() (interface{}, error) {
		if ix, ok, err := c.Get(ctx, runID); err == nil && ok {
			return ix, nil
		}
		ix, err := load()
		if err != nil {
			return nil, err
		}
		if err := c.Put(ctx, runID, ix); err != nil {
			c.logger.Error("sharing loaded index failed", "run_id", runID, "error", err)
		}
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	return val.(*features.Index), nil
}

// Invalidate removes every shared index, including those of other runs.
func (c *Cache) Invalidate(ctx context.Context) error {
	deleted, err := c.kv.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating index cache: %w", err)
	}
	c.logger.Info("index cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the hit and miss counts of Get since the cache was created.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) buildKey(runID string) string {
	return keyPrefix + runID
}
