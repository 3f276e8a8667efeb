package utils

import (
	"context"
	"fmt"
	"time"

	"leadflow/config"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// ActivityCache holds the serialized pending-activity payload per
// organization. It is an optimization only: Get misses and Set/Invalidate
// failures are logged and otherwise ignored.
type ActivityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Entry
}

// NewActivityCache returns nil when redis is disabled; callers treat a nil
// cache as a permanent miss.
func NewActivityCache(cfg config.RedisConfig, ttl time.Duration, logger *logrus.Entry) *ActivityCache {
	if !cfg.Enabled {
		return nil
	}
	return &ActivityCache{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
		ttl:    ttl,
		logger: logger,
	}
}

func activityCacheKey(orgID uint) string {
	return fmt.Sprintf("activities:pending:%d", orgID)
}

func (c *ActivityCache) Get(ctx context.Context, orgID uint) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, activityCacheKey(orgID)).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (c *ActivityCache) Set(ctx context.Context, orgID uint, payload []byte) {
	if c == nil {
		return
	}
	if err := c.client.Set(ctx, activityCacheKey(orgID), payload, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("failed to cache activity queue")
	}
}

// Invalidate implements engine.QueueCache.
func (c *ActivityCache) Invalidate(ctx context.Context, orgID uint) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, activityCacheKey(orgID)).Err(); err != nil {
		c.logger.WithError(err).Warn("failed to invalidate activity queue cache")
	}
}
