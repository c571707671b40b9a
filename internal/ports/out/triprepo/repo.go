package triprepo

import (
	"context"
	"time"

	"github.com/tripwell/crew-planner-api/internal/domain"
)

// Trip is the persistence shape used by the trip repository.
// It is not an HTTP DTO.
type Trip struct {
	ID     domain.TripID
	CrewID domain.CrewID

	Name        string
	Destination *string
	Purpose     domain.TripPurpose

	// StartDate/EndDate are stored at UTC midnight; nil means "unknown".
	StartDate *time.Time
	EndDate   *time.Time

	// Computed fields, stored at create/update time; nil unless both dates are set.
	Season    *string
	DaysTotal *int
	DateRange *string

	CreatedBy domain.TravelerID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted trips.
//
// Result ordering expectations:
// - ListByCrew returns trips ordered by CreatedAt descending (ties by ID).
type Repository interface {
	Create(ctx context.Context, t Trip) error
	Save(ctx context.Context, t Trip) error

	GetByID(ctx context.Context, id domain.TripID) (Trip, error)
	ListByCrew(ctx context.Context, crewID domain.CrewID) ([]Trip, error)
	CountByCrew(ctx context.Context, crewID domain.CrewID) (int, error)
}
