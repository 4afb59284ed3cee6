package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
)

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), srv
}

func TestCacheRepositorySetGet(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "libraries:list", map[string]int{"seats": 4}, time.Minute))

	var got map[string]int
	require.NoError(t, repo.Get(ctx, "libraries:list", &got))
	assert.Equal(t, 4, got["seats"])

	srv.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "libraries:list", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestCacheRepositoryDropsCorruptEntry(t *testing.T) {
	repo, srv := newCacheRepo(t)
	require.NoError(t, srv.Set("dashboard:stats", "{not json"))

	var got map[string]int
	err := repo.Get(context.Background(), "dashboard:stats", &got)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.False(t, srv.Exists("dashboard:stats"))
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, srv := newCacheRepo(t)
	ctx := context.Background()

	for _, key := range []string{"usage:analytics:a", "usage:analytics:b", "usage:recent"} {
		require.NoError(t, repo.Set(ctx, key, 1, time.Minute))
	}

	require.NoError(t, repo.DeleteByPattern(ctx, "usage:analytics:*"))
	assert.False(t, srv.Exists("usage:analytics:a"))
	assert.False(t, srv.Exists("usage:analytics:b"))
	assert.True(t, srv.Exists("usage:recent"))
}

func TestCacheRepositoryNilClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var dest string
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", "v", time.Second))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
}
