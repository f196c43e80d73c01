package discounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/neferdidi/boba-backend/pkg/db/models"
	"github.com/neferdidi/boba-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = time.Minute

type cacheStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	CacheKey(parts ...string) string
}

// CachedSource is a cache-aside wrapper for the public preview paths. Lifecycle
// writes read rules inside their transaction and never go through it.
type CachedSource struct {
	next  Source
	cache cacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

// NewCachedSource wraps next with a redis-backed cache.
func NewCachedSource(next Source, cache cacheStore, ttl time.Duration, logg *logger.Logger) (*CachedSource, error) {
	if next == nil {
		return nil, fmt.Errorf("discount rule source required")
	}
	if cache == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedSource{next: next, cache: cache, ttl: ttl, logg: logg}, nil
}

func (c *CachedSource) key() string {
	return c.cache.CacheKey("discount_rules", "active")
}

// ListActive serves from cache when possible. Cache failures degrade to the
// underlying source.
func (c *CachedSource) ListActive(ctx context.Context) ([]models.DiscountRule, error) {
	key := c.key()
	raw, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		var rules []models.DiscountRule
		if jsonErr := json.Unmarshal([]byte(raw), &rules); jsonErr == nil {
			return rules, nil
		}
		c.warn(ctx, "discount_rules.cache.decode_failed", nil)
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "discount_rules.cache.read_failed", err)
	}

	rules, err := c.next.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(rules)
	if err == nil {
		err = c.cache.Set(ctx, key, string(payload), c.ttl)
	}
	if err != nil {
		c.warn(ctx, "discount_rules.cache.write_failed", err)
	}
	return rules, nil
}

func (c *CachedSource) warn(ctx context.Context, msg string, err error) {
	if c.logg == nil {
		return
	}
	if err != nil {
		ctx = c.logg.WithField(ctx, "error", err.Error())
	}
	c.logg.Warn(ctx, msg)
}
