package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a Redis read-through decorator over a Directory. Directory data
// changes rarely and every authorized request needs one or two lookups, so a
// short TTL takes the directory service off the hot path. Redis failures
// fall through to the wrapped Directory.
type Cache struct {
	inner Directory
	rdb   redis.Cmdable
	ttl   time.Duration
}

func NewCache(inner Directory, rdb redis.Cmdable, ttl time.Duration) *Cache {
	return &Cache{inner: inner, rdb: rdb, ttl: ttl}
}

func userKey(userID string) string {
	return "directory:user:" + userID
}

func adminKey(userID, domainID string) string {
	return "directory:admin:" + userID + ":" + domainID
}

func (c *Cache) UserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	key := userKey(userID)

	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var info UserInfo
		if err := json.Unmarshal(data, &info); err == nil {
			return &info, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("directory cache: redis read failed", "error", err)
	}

	info, err := c.inner.UserInfo(ctx, userID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(info); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			slog.Warn("directory cache: redis write failed", "error", err)
		}
	}
	return info, nil
}

func (c *Cache) IsDomainAdmin(ctx context.Context, userID, domainID string) (bool, error) {
	key := adminKey(userID, domainID)

	if val, err := c.rdb.Get(ctx, key).Result(); err == nil {
		isAdmin, err := strconv.ParseBool(val)
		if err == nil {
			return isAdmin, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("directory cache: redis read failed", "error", err)
	}

	isAdmin, err := c.inner.IsDomainAdmin(ctx, userID, domainID)
	if err != nil {
		return false, err
	}

	if err := c.rdb.Set(ctx, key, fmt.Sprintf("%t", isAdmin), c.ttl).Err(); err != nil {
		slog.Warn("directory cache: redis write failed", "error", err)
	}
	return isAdmin, nil
}
