package previewcache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripwell/crew-planner-api/internal/domain"
)

func openClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration tests")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestCache_RoundTripAndInvalidate(t *testing.T) {
	client := openClient(t)
	c := New(client, time.Minute)
	ctx := context.Background()

	id := domain.CrewID(uuid.NewString())
	first := "Ana"
	desc := "Beach weekend"
	p := domain.CrewPreview{
		ID:          id,
		Name:        "Beach Trip",
		Description: &desc,
		MemberCount: 2,
		TripCount:   1,
		Admin:       &domain.PublicIdentity{TravelerID: "t1", FirstName: &first},
	}

	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, p))
	got, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, got)

	ttl, err := client.TTL(ctx, key(id)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Invalidate(ctx, id))
	_, ok, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCache_CorruptEntryIsMiss(t *testing.T) {
	client := openClient(t)
	c := New(client, time.Minute)
	ctx := context.Background()

	id := domain.CrewID(uuid.NewString())
	require.NoError(t, client.Set(ctx, key(id), "not json", time.Minute).Err())

	_, ok, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := client.Exists(ctx, key(id)).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
