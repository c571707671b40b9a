package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Cole Family Travel Crew", "cole-family-travel-crew"},
		{"Beach Trip 2025", "beach-trip-2025"},
		{"  --Hello,   World!!  ", "hello-world"},
		{"Café Crème", "cafe-creme"},
		{"", HandlePlaceholder},
		{"???", HandlePlaceholder},
		{"A", "crew-a"},
	}
	for _, tc := range cases {
		got := Slugify(tc.in)
		assert.Equal(t, tc.want, got, "Slugify(%q)", tc.in)
		assert.True(t, LooksLikeHandle(got), "Slugify(%q)=%q should look like a handle", tc.in, got)
	}
}

func TestSlugify_TruncatesWithoutTrailingHyphen(t *testing.T) {
	t.Parallel()

	name := "the quick brown fox jumps over the lazy dog and keeps running far away"
	got := Slugify(name)
	assert.LessOrEqual(t, len(got), MaxHandleLength)
	assert.NotEqual(t, byte('-'), got[len(got)-1])
}

func TestLooksLikeHandle(t *testing.T) {
	t.Parallel()

	assert.True(t, LooksLikeHandle("beach-trip-2025"))
	assert.True(t, LooksLikeHandle("ab"))
	assert.False(t, LooksLikeHandle("a"))
	assert.False(t, LooksLikeHandle("H7K2MQ"))
	assert.False(t, LooksLikeHandle("Beach-Trip"))
	assert.False(t, LooksLikeHandle("beach_trip"))
	assert.False(t, LooksLikeHandle(""))
}
