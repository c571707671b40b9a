package travelerrepo

import (
	"context"
	"time"

	"github.com/tripwell/crew-planner-api/internal/domain"
)

// Traveler is the persistence shape used by the traveler repository.
// It is an internal record, not an HTTP DTO.
type Traveler struct {
	ID domain.TravelerID
	// Subject is nil until the traveler first signs in.
	Subject  *domain.SubjectID
	TenantID string

	// Email is stored normalized (see domain.NormalizeEmail); nil means unset.
	Email     *string
	FirstName *string
	LastName  *string
	PhotoURL  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Repository provides access to persisted travelers.
type Repository interface {
	Create(ctx context.Context, t Traveler) error
	// Update replaces a traveler. Binding a nil Subject to a value is allowed; changing an
	// already-bound Subject is rejected with ErrSubjectAlreadyBound.
	Update(ctx context.Context, t Traveler) error

	GetByID(ctx context.Context, id domain.TravelerID) (Traveler, error)
	GetBySubject(ctx context.Context, subject domain.SubjectID) (Traveler, error)
	GetByEmail(ctx context.Context, email string) (Traveler, error)
}
