package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	presenceKeyPrefix = "presence:last_seen:"
	presenceTTL       = 24 * time.Hour
)

// PresenceCache records when a user was last seen. The authoritative
// last-seen timestamp lives on the user row; the cache absorbs the
// per-request write volume and is read back lazily.
type PresenceCache interface {
	Touch(ctx context.Context, userID uint, at time.Time) error
	LastSeen(ctx context.Context, userID uint) (time.Time, bool, error)
}

type redisPresenceCache struct {
	client *redis.Client
}

// NewRedisPresenceCache creates a Redis-backed PresenceCache.
func NewRedisPresenceCache(client *redis.Client) PresenceCache {
	return &redisPresenceCache{client: client}
}

func presenceKey(userID uint) string {
	return fmt.Sprintf("%s%d", presenceKeyPrefix, userID)
}

func (r *redisPresenceCache) Touch(ctx context.Context, userID uint, at time.Time) error {
	return r.client.Set(ctx, presenceKey(userID), at.UTC().Format(time.RFC3339), presenceTTL).Err()
}

func (r *redisPresenceCache) LastSeen(ctx context.Context, userID uint) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, presenceKey(userID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}
