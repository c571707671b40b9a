package domain

import (
	"strings"
	"time"
)

// Traveler is the domain representation of a person using the app.
//
// Subject is nil for travelers pre-provisioned by email who have not signed in yet.
type Traveler struct {
	ID       TravelerID
	Subject  *SubjectID
	TenantID string

	Email     *string
	FirstName *string
	LastName  *string
	PhotoURL  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PublicIdentity is the subset of a traveler safe to show to people who are not signed in.
type PublicIdentity struct {
	TravelerID TravelerID
	FirstName  *string
	LastName   *string
	PhotoURL   *string
}

func (t Traveler) PublicIdentity() PublicIdentity {
	return PublicIdentity{
		TravelerID: t.ID,
		FirstName:  t.FirstName,
		LastName:   t.LastName,
		PhotoURL:   t.PhotoURL,
	}
}

// SplitDisplayName splits an IdP display name into first name (first token) and last name
// (remaining tokens). Either result is nil when empty.
func SplitDisplayName(displayName string) (first *string, last *string) {
	parts := strings.Fields(displayName)
	if len(parts) == 0 {
		return nil, nil
	}
	f := parts[0]
	first = &f
	if len(parts) > 1 {
		l := strings.Join(parts[1:], " ")
		last = &l
	}
	return first, last
}

// NormalizeEmail trims and lowercases an email for storage and lookup.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
