package persistence

import (
	"context"
	"errors"
	"time"
)

const dedupKeyPrefix = "intake:msgid:"

// DedupCache is the Redis fast path in front of the authoritative
// message-id uniqueness check.
type DedupCache struct {
	redis *Redis
	ttl   time.Duration
}

// NewDedupCache builds the cache. TTL bounds the remembered window; the
// database check behind it has no such bound.
func NewDedupCache(redis *Redis, ttl time.Duration) *DedupCache {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &DedupCache{redis: redis, ttl: ttl}
}

// MarkSeen records the message-id and reports whether it was already present.
func (c *DedupCache) MarkSeen(ctx context.Context, messageID string) (bool, error) {
	if c == nil || c.redis == nil || c.redis.Client == nil {
		return false, errors.New("redis client not configured")
	}
	set, err := c.redis.Client.SetNX(ctx, dedupKeyPrefix+messageID, 1, c.ttl).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Forget drops the message-id so a redelivery is not suppressed. Called
// when ingestion fails after the id was marked.
func (c *DedupCache) Forget(ctx context.Context, messageID string) error {
	if c == nil || c.redis == nil || c.redis.Client == nil {
		return errors.New("redis client not configured")
	}
	return c.redis.Client.Del(ctx, dedupKeyPrefix+messageID).Err()
}
