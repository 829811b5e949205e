package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dumu-tech/restaurant-ops/internal/core"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		url = "redis://localhost:6379/15"
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	repo := NewRepository(client)
	if err := repo.Ping(ctx); err != nil {
		t.Skipf("redis not available at %s: %v", url, err)
	}
	return repo
}

func TestSequenceKey(t *testing.T) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "seq:order:r1:20260310", sequenceKey(core.SequenceOrder, "r1", day))
}

func TestSequencerCountsPerDay(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	restaurant := uuid.New().String()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	first, err := repo.Next(ctx, core.SequenceOrder, restaurant, day)
	require.NoError(t, err)
	second, err := repo.Next(ctx, core.SequenceOrder, restaurant, day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	receipt, err := repo.Next(ctx, core.SequenceReceipt, restaurant, day)
	require.NoError(t, err)
	assert.Equal(t, int64(1), receipt)

	nextDay, err := repo.Next(ctx, core.SequenceOrder, restaurant, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), nextDay)

	ttl, err := repo.client.TTL(ctx, sequenceKey(core.SequenceOrder, restaurant, day)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 47*time.Hour)
}

func TestTableTokens(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	token := "b1:" + uuid.New().String()

	require.NoError(t, repo.SaveTableToken(ctx, token, "t1", time.Minute))
	tableID, err := repo.LookupTableToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "t1", tableID)

	_, err = repo.LookupTableToken(ctx, "b1:"+uuid.New().String())
	assert.ErrorIs(t, err, core.ErrNotFound)
}
