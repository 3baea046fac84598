package domainpattern

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	redisc "github.com/contact-recon/backend/internal/cache/redis"
	"github.com/contact-recon/backend/internal/metrics"
	"github.com/contact-recon/backend/internal/storage/models"
	"github.com/contact-recon/backend/internal/storage/sqlite"
	"github.com/contact-recon/backend/pkg/logger"
)

// Cache is the read-through cache for domain patterns: process memory
// first, then the shared redis tier when configured, then the
// persisted store. Writes go to every tier; lookups are safe to race
// because every tier is last-write-wins.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	redis   *redisc.Client
	db      *sqlite.Client
}

type memoryEntry struct {
	pattern models.DomainPattern
	expires time.Time
}

func NewCache(db *sqlite.Client, redis *redisc.Client, ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		redis:   redis,
		db:      db,
	}
}

// Get returns the cached pattern for a domain, or nil on a full miss.
func (c *Cache) Get(ctx context.Context, domain string) *models.DomainPattern {
	c.mu.RLock()
	entry, ok := c.entries[domain]
	c.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		metrics.CacheHits.WithLabelValues("pattern_memory").Inc()
		return &entry.pattern
	}
	metrics.CacheMisses.WithLabelValues("pattern_memory").Inc()

	if c.redis != nil {
		var p models.DomainPattern
		hit, err := c.redis.GetDomainPattern(ctx, domain, &p)
		if err != nil {
			logger.Warn("Redis pattern lookup failed", zap.Error(err))
		} else if hit {
			metrics.CacheHits.WithLabelValues("pattern_redis").Inc()
			c.storeMemory(p)
			return &p
		}
		metrics.CacheMisses.WithLabelValues("pattern_redis").Inc()
	}

	p, err := c.db.GetDomainPattern(domain)
	if err == sqlite.ErrNotFound {
		return nil
	}
	if err != nil {
		logger.Warn("Persisted pattern lookup failed", zap.Error(err))
		return nil
	}

	c.storeMemory(*p)
	return p
}

// Put writes a pattern through every tier.
func (c *Cache) Put(ctx context.Context, p models.DomainPattern) {
	c.storeMemory(p)

	if c.redis != nil {
		if err := c.redis.SetDomainPattern(ctx, p.Domain, p, c.ttl); err != nil {
			logger.Warn("Redis pattern write failed", zap.Error(err))
		}
	}

	if err := c.db.UpsertDomainPattern(&p); err != nil {
		logger.Error("Persisted pattern write failed",
			zap.String("domain", p.Domain), zap.Error(err))
	}
}

// Invalidate drops the volatile tiers for a domain so the next lookup
// recomputes. The persisted row stays until the recompute overwrites it.
func (c *Cache) Invalidate(ctx context.Context, domain string) {
	c.mu.Lock()
	delete(c.entries, domain)
	c.mu.Unlock()

	if c.redis != nil {
		if err := c.redis.DeleteDomainPattern(ctx, domain); err != nil {
			logger.Warn("Redis pattern invalidation failed", zap.Error(err))
		}
	}
}

func (c *Cache) storeMemory(p models.DomainPattern) {
	c.mu.Lock()
	c.entries[p.Domain] = memoryEntry{pattern: p, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
