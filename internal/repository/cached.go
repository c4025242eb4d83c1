package repository

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-finance/receipts/internal/domain"
)

const cacheKeyPrefix = "receipt:"

// CachedRepository is a read-through decorator that keeps looked-up receipts
// in a domain.Cache. Stored receipts never change, so entries need no invalidation.
type CachedRepository struct {
	domain.Repository
	cache domain.Cache
	ttl   time.Duration
}

// NewCached wraps repo with cache. Cache failures degrade to the wrapped repository.
func NewCached(repo domain.Repository, cache domain.Cache, ttl time.Duration) *CachedRepository {
	return &CachedRepository{
		Repository: repo,
		cache:      cache,
		ttl:        ttl,
	}
}

// Lookup serves from cache when possible and fills it on a miss.
func (c *CachedRepository) Lookup(ctx context.Context, id string) (*domain.ProcessedReceipt, error) {
	key := cacheKeyPrefix + id

	data, err := c.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("cache get failed", "key", key, "error", err)
	}
	if data != nil {
		var p domain.ProcessedReceipt
		if err := json.Unmarshal(data, &p); err == nil {
			return &p, nil
		}
		slog.Warn("discarding corrupt cache entry", "key", key)
	}

	p, err := c.Repository.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(p); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl); err != nil {
			slog.Warn("cache set failed", "key", key, "error", err)
		}
	}
	return p, nil
}

// Ping checks both the repository and the cache.
func (c *CachedRepository) Ping(ctx context.Context) error {
	if err := c.Repository.Ping(ctx); err != nil {
		return err
	}
	return c.cache.Ping(ctx)
}

// Close closes the repository. The cache is owned by the caller.
func (c *CachedRepository) Close() error {
	return c.Repository.Close()
}
