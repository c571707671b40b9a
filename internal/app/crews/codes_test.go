package crews

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	memclock "github.com/tripwell/crew-planner-api/internal/adapters/memory/clock"
	"github.com/tripwell/crew-planner-api/internal/domain"
)

func TestCodeGenerator_JoinCode_UniqueAcrossManyCalls(t *testing.T) {
	t.Parallel()

	g := newCodeGenerator(memclock.NewManualClock(time.Unix(1_700_000_000, 0).UTC()), zap.NewNop())
	seen := make(map[string]struct{})
	exists := func(_ context.Context, code string) (bool, error) {
		_, ok := seen[code]
		return ok, nil
	}

	for i := 0; i < 2000; i++ {
		code, err := g.JoinCode(context.Background(), exists)
		require.NoError(t, err)
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %q at iteration %d", code, i)
		seen[code] = struct{}{}

		if len(code) == domain.JoinCodeLength {
			for _, r := range code {
				assert.Contains(t, domain.JoinCodeAlphabet, string(r))
			}
		}
	}
}

func TestCodeGenerator_JoinCode_FallsBackAfterCollisions(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Unix(1_700_000_000, 0).UTC())
	g := newCodeGenerator(clk, zap.NewNop())
	fallbacks := 0
	g.onFallback = func() { fallbacks++ }

	calls := 0
	alwaysTaken := func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	}

	first, err := g.JoinCode(context.Background(), alwaysTaken)
	require.NoError(t, err)
	second, err := g.JoinCode(context.Background(), alwaysTaken)
	require.NoError(t, err)

	assert.Equal(t, 2*maxCodeAttempts, calls)
	assert.Equal(t, 2, fallbacks)
	assert.NotEqual(t, first, second, "fallback codes must differ even within the same millisecond")
	assert.GreaterOrEqual(t, len(first), 9)
	for _, r := range first + second {
		assert.Contains(t, domain.JoinCodeAlphabet, string(r))
	}
}

func TestCodeGenerator_Handle(t *testing.T) {
	t.Parallel()

	clk := memclock.NewManualClock(time.Unix(1_700_000_000, 0).UTC())
	g := newCodeGenerator(clk, zap.NewNop())

	free := func(context.Context, string) (bool, error) { return false, nil }
	h, err := g.Handle(context.Background(), "Cole Family Travel Crew", free)
	require.NoError(t, err)
	assert.Equal(t, "cole-family-travel-crew", h)

	taken := map[string]bool{"beach-trip-2025": true}
	h, err = g.Handle(context.Background(), "Beach Trip 2025", func(_ context.Context, s string) (bool, error) {
		return taken[s], nil
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "beach-trip-2025-"), "handle=%q", h)
	assert.True(t, domain.LooksLikeHandle(h))

	h, err = g.Handle(context.Background(), "???", func(context.Context, string) (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, domain.HandlePlaceholder+"-"), "handle=%q", h)
}

func TestWithSuffix_RespectsMaxLength(t *testing.T) {
	t.Parallel()

	base := strings.Repeat("a", domain.MaxHandleLength)
	got := withSuffix(base, "lq2x9k3a")
	assert.LessOrEqual(t, len(got), domain.MaxHandleLength)
	assert.True(t, strings.HasSuffix(got, "-lq2x9k3a"))
}
