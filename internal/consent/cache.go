// Package consent caches per-customer consent answers so the runner doesn't
// hit the remote attribute-read endpoint on every submission.
package consent

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"bloomreach-forms/internal/common/database"
	"bloomreach-forms/internal/common/logger"
	"bloomreach-forms/internal/common/metrics"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "brforms:consent:"

// Cache stores a tri-state consent answer per (email, consent key). An absent
// or expired entry is a miss, never a false; a cached false is a valid
// time-bounded answer. Writes are last-writer-wins; concurrent jobs for the
// same customer may both miss and both resolve remotely, which is acceptable.
type Cache struct {
	redis  *database.RedisClient
	logger logger.Logger
}

func NewCache(rdb *database.RedisClient, log logger.Logger) *Cache {
	return &Cache{redis: rdb, logger: log}
}

// CacheKey hashes the normalized identity so raw email addresses never appear
// in the backing store's key space.
func CacheKey(email, consentKey string) string {
	sum := md5.Sum([]byte(strings.ToLower(email) + "|" + consentKey))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Get returns the cached value and whether the lookup was a hit. Backend
// errors degrade to a miss so consent resolution can fall through to the
// remote check.
func (c *Cache) Get(ctx context.Context, email, consentKey string) (bool, bool) {
	v, err := c.redis.Get(ctx, CacheKey(email, consentKey))
	if err == redis.Nil {
		metrics.ConsentCacheLookups.WithLabelValues("miss").Inc()
		return false, false
	}
	if err != nil {
		metrics.ConsentCacheLookups.WithLabelValues("miss").Inc()
		c.logger.Warn("Consent cache lookup failed, treating as miss", map[string]interface{}{
			"email": logger.MaskEmail(email),
			"error": err.Error(),
		})
		return false, false
	}
	metrics.ConsentCacheLookups.WithLabelValues("hit").Inc()
	return v == "1", true
}

// Set stores a resolved consent value for the configured TTL.
func (c *Cache) Set(ctx context.Context, email, consentKey string, value bool, ttl time.Duration) {
	stored := "0"
	if value {
		stored = "1"
	}
	if err := c.redis.Set(ctx, CacheKey(email, consentKey), stored, ttl); err != nil {
		c.logger.Warn("Consent cache write failed", map[string]interface{}{
			"email": logger.MaskEmail(email),
			"error": err.Error(),
		})
	}
}
