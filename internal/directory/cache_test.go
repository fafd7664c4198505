package directory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingDirectory counts lookups that reach the wrapped directory.
type countingDirectory struct {
	userCalls  int
	adminCalls int
	info       *UserInfo
	isAdmin    bool
	err        error
}

func (c *countingDirectory) UserInfo(ctx context.Context, userID string) (*UserInfo, error) {
	c.userCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.info, nil
}

func (c *countingDirectory) IsDomainAdmin(ctx context.Context, userID, domainID string) (bool, error) {
	c.adminCalls++
	if c.err != nil {
		return false, c.err
	}
	return c.isAdmin, nil
}

func setupCache(t *testing.T, inner Directory) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewCache(inner, rdb, time.Minute), mr
}

func TestCacheUserInfo_ReadThrough(t *testing.T) {
	inner := &countingDirectory{
		info: &UserInfo{UserID: "alice", Login: "alice@x", DomainID: "d1", AuditEnabled: true},
	}
	cache, _ := setupCache(t, inner)
	ctx := context.Background()

	info, err := cache.UserInfo(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@x", info.Login)
	assert.Equal(t, 1, inner.userCalls)

	// Second lookup is served from Redis.
	info, err = cache.UserInfo(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@x", info.Login)
	assert.True(t, info.AuditEnabled)
	assert.Equal(t, 1, inner.userCalls)
}

func TestCacheUserInfo_ExpiryHitsDirectoryAgain(t *testing.T) {
	inner := &countingDirectory{info: &UserInfo{UserID: "alice", DomainID: "d1"}}
	cache, mr := setupCache(t, inner)
	ctx := context.Background()

	_, err := cache.UserInfo(ctx, "alice")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = cache.UserInfo(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.userCalls)
}

func TestCacheUserInfo_ErrorNotCached(t *testing.T) {
	inner := &countingDirectory{err: ErrUserNotFound}
	cache, _ := setupCache(t, inner)
	ctx := context.Background()

	_, err := cache.UserInfo(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = cache.UserInfo(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 2, inner.userCalls, "lookup failures must not be cached")
}

func TestCacheIsDomainAdmin_ReadThrough(t *testing.T) {
	inner := &countingDirectory{isAdmin: true}
	cache, _ := setupCache(t, inner)
	ctx := context.Background()

	isAdmin, err := cache.IsDomainAdmin(ctx, "admin", "d1")
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = cache.IsDomainAdmin(ctx, "admin", "d1")
	require.NoError(t, err)
	assert.True(t, isAdmin)
	assert.Equal(t, 1, inner.adminCalls)
}

func TestCacheIsDomainAdmin_NegativeResultCached(t *testing.T) {
	inner := &countingDirectory{isAdmin: false}
	cache, _ := setupCache(t, inner)
	ctx := context.Background()

	isAdmin, err := cache.IsDomainAdmin(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.False(t, isAdmin)

	isAdmin, err = cache.IsDomainAdmin(ctx, "alice", "d1")
	require.NoError(t, err)
	assert.False(t, isAdmin)
	assert.Equal(t, 1, inner.adminCalls, "a false answer is still an answer")
}

func TestCache_FailsOverToDirectoryOnRedisLoss(t *testing.T) {
	inner := &countingDirectory{info: &UserInfo{UserID: "alice", DomainID: "d1"}}
	cache, mr := setupCache(t, inner)
	mr.Close()

	info, err := cache.UserInfo(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.UserID)
	assert.Equal(t, 1, inner.userCalls)
}
