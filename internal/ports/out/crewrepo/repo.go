package crewrepo

import (
	"context"
	"time"

	"github.com/tripwell/crew-planner-api/internal/domain"
)

// Crew is the persistence shape for a crew row.
type Crew struct {
	ID          domain.CrewID
	Name        string
	Description *string

	Handle *string
	// LegacyJoinCode is read-only: new crews never set it.
	LegacyJoinCode *string

	CreatedBy domain.TravelerID
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Membership struct {
	CrewID     domain.CrewID
	TravelerID domain.TravelerID
	CreatedAt  time.Time
}

type Role struct {
	CrewID     domain.CrewID
	TravelerID domain.TravelerID
	Role       domain.Role
	CreatedAt  time.Time
}

type JoinCode struct {
	Code          string
	CrewID        domain.CrewID
	IsActive      bool
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	DeactivatedAt *time.Time
}

// Bootstrap is the set of rows written when a crew is created. All four are written atomically:
// either every row exists afterwards or none does.
type Bootstrap struct {
	Crew       Crew
	Membership Membership
	Role       Role
	JoinCode   JoinCode
}

// Repository provides access to crews, their memberships and roles, and the join code registry.
//
// Result ordering expectations:
// - ListRoles: CreatedAt ascending (the first admin is the crew's public face).
// - ListMembers: CreatedAt ascending.
// - ListForTraveler: membership CreatedAt descending.
// - ListJoinCodes: CreatedAt descending.
type Repository interface {
	// Bootstrap creates a crew with its founder membership, founder role and join code in one
	// transaction. Uniqueness failures map to ErrAlreadyExists, ErrHandleTaken or ErrJoinCodeTaken.
	Bootstrap(ctx context.Context, b Bootstrap) error

	GetByID(ctx context.Context, id domain.CrewID) (Crew, error)
	GetByHandle(ctx context.Context, handle string) (Crew, error)
	GetByLegacyJoinCode(ctx context.Context, code string) (Crew, error)
	HandleExists(ctx context.Context, handle string) (bool, error)
	ListForTraveler(ctx context.Context, travelerID domain.TravelerID) ([]Crew, error)
	// ListWithLegacyJoinCode returns crews that still carry a denormalized join code.
	ListWithLegacyJoinCode(ctx context.Context) ([]Crew, error)

	// AddMember inserts a membership; a duplicate (crew, traveler) pair yields ErrAlreadyMember.
	AddMember(ctx context.Context, m Membership) error
	GetMembership(ctx context.Context, crewID domain.CrewID, travelerID domain.TravelerID) (Membership, error)
	ListMembers(ctx context.Context, crewID domain.CrewID) ([]Membership, error)
	CountMembers(ctx context.Context, crewID domain.CrewID) (int, error)

	ListRoles(ctx context.Context, crewID domain.CrewID) ([]Role, error)
	HasRole(ctx context.Context, crewID domain.CrewID, travelerID domain.TravelerID, role domain.Role) (bool, error)

	// CreateJoinCode inserts a new registry row; an existing code yields ErrJoinCodeTaken.
	CreateJoinCode(ctx context.Context, jc JoinCode) error
	// EnsureJoinCode inserts jc if no row with jc.Code exists and returns the stored row.
	// An existing row is returned unchanged (an inactive row is never reactivated).
	EnsureJoinCode(ctx context.Context, jc JoinCode) (JoinCode, error)
	GetJoinCode(ctx context.Context, code string) (JoinCode, error)
	// JoinCodeExists reports whether code is taken in the registry or as a legacy crew code.
	JoinCodeExists(ctx context.Context, code string) (bool, error)
	ListJoinCodes(ctx context.Context, crewID domain.CrewID) ([]JoinCode, error)
	// DeactivateJoinCode marks the code inactive. Unknown codes yield ErrNotFound.
	DeactivateJoinCode(ctx context.Context, code string, at time.Time) error
}
