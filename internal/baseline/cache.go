// internal/baseline/cache.go
package baseline

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"shoe-size-analytics/internal/common/logger"
	"shoe-size-analytics/internal/models"
)

// CachedProvider keeps baselines in Redis. Cache failures are logged and the
// wrapped provider is used directly.
type CachedProvider struct {
	next   Provider
	redis  *redis.Client
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func NewCachedProvider(next Provider, rdb *redis.Client, ttl time.Duration, source string, log logger.Logger) *CachedProvider {
	return &CachedProvider{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		prefix: "baseline:" + source + ":",
		logger: log.WithFields(map[string]interface{}{"component": "baseline-cache"}),
	}
}

func (c *CachedProvider) Lookup(ctx context.Context, period string) (*models.PriorPeriod, error) {
	period, err := NormalizePeriod(period)
	if err != nil {
		return nil, err
	}
	key := c.prefix + period

	val, err := c.redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		var prior models.PriorPeriod
		if jerr := json.Unmarshal([]byte(val), &prior); jerr == nil {
			return &prior, nil
		}
		c.logger.Warn("discarding malformed cached baseline", map[string]interface{}{"key": key})
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("baseline cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}

	prior, err := c.next.Lookup(ctx, period)
	if err != nil {
		return nil, err
	}

	if data, jerr := json.Marshal(prior); jerr == nil {
		if serr := c.redis.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.logger.Warn("baseline cache write failed", map[string]interface{}{"key": key, "error": serr.Error()})
		}
	}
	return prior, nil
}
