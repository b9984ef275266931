package repository

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yearbook/picker-server-go/internal/model"
)

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Skipf("redis not available: %v", err)
	}
	client.FlushDB(ctx)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestAdminSessionRepository(t *testing.T) {
	client := setupTestRedis(t)
	repo := NewAdminSessionRepository(client)
	ctx := context.Background()

	created, err := repo.Create(ctx, model.CreateAdminSessionParams{
		TokenHash: "hash-1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	t.Run("finds by token hash", func(t *testing.T) {
		found, err := repo.FindByTokenHash(ctx, "hash-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.ID, found.ID)
	})

	t.Run("sets key ttl", func(t *testing.T) {
		ttl := client.TTL(ctx, "picker:admin_session:hash-1").Val()
		assert.True(t, ttl > 59*time.Minute && ttl <= time.Hour)
	})

	t.Run("returns nil for unknown hash", func(t *testing.T) {
		found, err := repo.FindByTokenHash(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("delete removes session", func(t *testing.T) {
		require.NoError(t, repo.DeleteByTokenHash(ctx, "hash-1"))
		found, err := repo.FindByTokenHash(ctx, "hash-1")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("rejects expired params", func(t *testing.T) {
		_, err := repo.Create(ctx, model.CreateAdminSessionParams{
			TokenHash: "hash-2",
			ExpiresAt: time.Now().Add(-time.Second),
		})
		assert.Error(t, err)
	})
}
