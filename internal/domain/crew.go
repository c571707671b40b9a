package domain

import "time"

// Role is a crew role string. Roles are validated against KnownRoles rather than modeled as a
// closed enum so new roles do not require a schema change.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// KnownRoles is the single source of truth for accepted role values.
var KnownRoles = []Role{RoleAdmin, RoleMember}

func (r Role) Valid() bool {
	for _, k := range KnownRoles {
		if r == k {
			return true
		}
	}
	return false
}

// Crew is a named group of travelers who plan trips together.
type Crew struct {
	ID          CrewID
	Name        string
	Description *string

	// Handle is the preferred invite path segment; nil for crews created before handles existed.
	Handle *string
	// LegacyJoinCode is the denormalized code carried by old crews. It is only read, never written.
	LegacyJoinCode *string

	CreatedBy TravelerID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CrewMember is a traveler's membership in a crew along with their roles.
type CrewMember struct {
	Identity PublicIdentity
	Email    *string
	Roles    []Role
	JoinedAt time.Time
}

// CrewDetails is the member-only read model for a crew.
type CrewDetails struct {
	Crew
	Members   []CrewMember
	TripCount int
}

// CrewSummary is a list entry for "my crews".
type CrewSummary struct {
	Crew
	MemberCount int
	TripCount   int
}

// CrewPreview is what an invite landing page shows without authentication.
type CrewPreview struct {
	ID          CrewID
	Name        string
	Description *string
	MemberCount int
	TripCount   int
	// Admin is the first admin-role holder; nil if the crew has none.
	Admin *PublicIdentity
}

// JoinCode is an entry in the invite registry.
type JoinCode struct {
	Code          string
	CrewID        CrewID
	IsActive      bool
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// Usable reports whether the code may be used to resolve its crew at time now.
func (j JoinCode) Usable(now time.Time) bool {
	if !j.IsActive {
		return false
	}
	if j.ExpiresAt != nil && !j.ExpiresAt.After(now) {
		return false
	}
	return true
}
