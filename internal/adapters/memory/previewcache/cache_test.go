package previewcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memclock "github.com/tripwell/crew-planner-api/internal/adapters/memory/clock"
	"github.com/tripwell/crew-planner-api/internal/domain"
)

func TestCache_SetGetExpire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := memclock.NewManualClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	c := New(clk, time.Minute)

	require.NoError(t, c.Set(ctx, domain.CrewPreview{ID: "c1", Name: "Beach Crew", MemberCount: 2}))

	got, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Beach Crew", got.Name)
	assert.Equal(t, 2, got.MemberCount)

	clk.Advance(time.Minute)
	_, ok, err = c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire after ttl")
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := New(memclock.NewManualClock(time.Unix(0, 0).UTC()), 0)

	require.NoError(t, c.Set(ctx, domain.CrewPreview{ID: "c1", Name: "Beach Crew"}))
	require.NoError(t, c.Invalidate(ctx, "c1"))

	_, ok, err := c.Get(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, ok)
}
