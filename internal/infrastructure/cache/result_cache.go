package cache

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/kirillkom/claim-verifier/internal/core/domain"
)

const (
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

// ResultCache keeps recent verification results keyed by claim fingerprint.
// Entries expire after the configured TTL; an expired fingerprint is a miss
// and the claim is verified again.
type ResultCache struct {
	cache *gocache.Cache

	hits   atomic.Int64
	misses atomic.Int64
}

type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

func NewResultCache(ttl, cleanupInterval time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &ResultCache{
		cache: gocache.New(ttl, cleanupInterval),
	}
}

func (c *ResultCache) Get(fingerprint string) (*domain.PipelineResult, bool) {
	val, found := c.cache.Get(fingerprint)
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)

	// Hand out a copy so a caller mutating the result cannot poison
	// later hits.
	result := *(val.(*domain.PipelineResult))
	return &result, true
}

func (c *ResultCache) Put(fingerprint string, result *domain.PipelineResult) {
	if result == nil {
		return
	}
	stored := *result
	stored.FromCache = false
	c.cache.SetDefault(fingerprint, &stored)
}

func (c *ResultCache) Evict(fingerprint string) {
	c.cache.Delete(fingerprint)
}

func (c *ResultCache) Len() int {
	return c.cache.ItemCount()
}

func (c *ResultCache) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.cache.ItemCount(),
	}
}
