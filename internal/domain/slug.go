package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// HandlePlaceholder is used when a crew name produces no slug characters.
	HandlePlaceholder = "crew"

	// MinHandleLength is the shortest value the invite resolver treats as a handle.
	MinHandleLength = 2
	// MaxHandleLength bounds the slug derived from a name (before any uniqueness suffix).
	MaxHandleLength = 48
)

// Slugify derives a URL-safe handle from a free-text crew name.
//
// The result is lowercase, diacritics are stripped, runs of anything other than [a-z0-9]
// collapse to a single hyphen, and leading/trailing hyphens are removed. It never returns an
// empty string and always satisfies LooksLikeHandle.
func Slugify(name string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		folded = name
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > MaxHandleLength {
		slug = strings.TrimRight(slug[:MaxHandleLength], "-")
	}
	switch {
	case slug == "":
		return HandlePlaceholder
	case len(slug) < MinHandleLength:
		return HandlePlaceholder + "-" + slug
	}
	return slug
}

// LooksLikeHandle reports whether s has the shape of a handle: all lowercase, only
// [a-z0-9-], at least MinHandleLength long. Join codes are uppercase, so a single
// "/join/<value>" path works for both.
func LooksLikeHandle(s string) bool {
	if len(s) < MinHandleLength {
		return false
	}
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			continue
		}
		return false
	}
	return true
}
