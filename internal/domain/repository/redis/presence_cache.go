package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const onlineSetKey = "presence:online"

// PresenceCache mirrors the set of online user ids in Redis so read-heavy
// roster lookups skip the database. PostgreSQL stays the source of truth;
// cache failures are logged and swallowed so a Redis outage never blocks a
// login or logout.
type PresenceCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewPresenceCache creates a new instance of PresenceCache.
func NewPresenceCache(client *redis.Client, logger *zap.Logger, ttl time.Duration) *PresenceCache {
	return &PresenceCache{
		client: client,
		logger: logger,
		ttl:    ttl,
	}
}

// SetOnline adds the user to the online set.
func (c *PresenceCache) SetOnline(ctx context.Context, userID uuid.UUID) {
	if err := c.client.SAdd(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		c.logger.Warn("Failed to add user to online set", zap.Error(err), zap.String("user_id", userID.String()))
		return
	}
	if err := c.client.Expire(ctx, onlineSetKey, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to refresh online set TTL", zap.Error(err))
	}
}

// SetOffline removes the user from the online set.
func (c *PresenceCache) SetOffline(ctx context.Context, userID uuid.UUID) {
	if err := c.client.SRem(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		c.logger.Warn("Failed to remove user from online set", zap.Error(err), zap.String("user_id", userID.String()))
	}
}

// ListOnline returns the cached online user ids. A miss or error returns
// (nil, false) and the caller falls back to the database.
func (c *PresenceCache) ListOnline(ctx context.Context) ([]uuid.UUID, bool) {
	members, err := c.client.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Failed to read online set", zap.Error(err))
		}
		return nil, false
	}
	if len(members) == 0 {
		// Cannot distinguish "nobody online" from an expired key.
		return nil, false
	}

	ids := make([]uuid.UUID, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			c.logger.Warn("Dropping malformed id from online set", zap.String("member", m))
			continue
		}
		ids = append(ids, id)
	}
	return ids, true
}

// Invalidate drops the whole online set. Used after bulk session sweeps.
func (c *PresenceCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, onlineSetKey).Err(); err != nil {
		c.logger.Warn("Failed to invalidate online set", zap.Error(err))
	}
}
