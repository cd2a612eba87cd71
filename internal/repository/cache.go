package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/randgate/backend/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "entitlement:paid:"

type entitlementBackend interface {
	IsPaid(ctx context.Context, userID int64) (bool, error)
	Find(ctx context.Context, userID int64) (*domain.Entitlement, error)
	MarkPaid(ctx context.Context, userID int64, evt *domain.PaymentEvent) (bool, error)
}

// EntitlementCache is a Redis read-through cache in front of the SQL store.
// Only paid results are cached: entitlements never revert, so a cached
// true can never go stale, while a cached false could.
type EntitlementCache struct {
	next entitlementBackend
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *zap.Logger
}

// NewEntitlementCache wraps next with a Redis cache. A zero ttl keeps keys forever.
func NewEntitlementCache(next entitlementBackend, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *EntitlementCache {
	return &EntitlementCache{next: next, rdb: rdb, ttl: ttl, log: log.Named("entitlement_cache")}
}

func cacheKey(userID int64) string {
	return cacheKeyPrefix + strconv.FormatInt(userID, 10)
}

// IsPaid consults Redis first and falls back to the store on a miss or error.
func (c *EntitlementCache) IsPaid(ctx context.Context, userID int64) (bool, error) {
	val, err := c.rdb.Get(ctx, cacheKey(userID)).Result()
	switch {
	case err == nil && val == "1":
		return true, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.log.Warn("cache read failed", zap.Int64("user_id", userID), zap.Error(err))
	}

	paid, err := c.next.IsPaid(ctx, userID)
	if err != nil {
		return false, err
	}
	if paid {
		c.remember(ctx, userID)
	}
	return paid, nil
}

// Find is not cached; it serves the admin surface only.
func (c *EntitlementCache) Find(ctx context.Context, userID int64) (*domain.Entitlement, error) {
	return c.next.Find(ctx, userID)
}

// MarkPaid writes through to the store, then caches the paid state.
func (c *EntitlementCache) MarkPaid(ctx context.Context, userID int64, evt *domain.PaymentEvent) (bool, error) {
	granted, err := c.next.MarkPaid(ctx, userID, evt)
	if err != nil {
		return false, err
	}
	c.remember(ctx, userID)
	return granted, nil
}

func (c *EntitlementCache) remember(ctx context.Context, userID int64) {
	if err := c.rdb.Set(ctx, cacheKey(userID), "1", c.ttl).Err(); err != nil {
		c.log.Warn("cache write failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

// NewRedis creates a Redis client and verifies the connection.
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}
