package travelers

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripwell/crew-planner-api/internal/domain"
	clockport "github.com/tripwell/crew-planner-api/internal/ports/out/clock"
	"github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
)

type Service struct {
	repo     travelerrepo.Repository
	clk      clockport.Clock
	log      *zap.Logger
	tenantID string

	newTravelerID func() domain.TravelerID
}

// NewService returns a traveler service. New travelers are stamped with tenantID.
func NewService(repo travelerrepo.Repository, clk clockport.Clock, tenantID string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		clk:      clk,
		log:      log.Named("travelers"),
		tenantID: tenantID,
		newTravelerID: func() domain.TravelerID {
			return domain.TravelerID(uuid.NewString())
		},
	}
}

// Hydrate finds or creates the traveler for subject and refreshes its profile from the
// provided claims.
//
// Lookup order: by subject; then a pre-provisioned traveler with the same email and no subject
// (which gets bound); then a new traveler.
func (s *Service) Hydrate(ctx context.Context, subject domain.SubjectID, in HydrateInput) (domain.Traveler, error) {
	email := strings.TrimSpace(in.Email)
	if email != "" {
		if err := validateEmail(email); err != nil {
			return domain.Traveler{}, errValidation("email", err.Error())
		}
		email = domain.NormalizeEmail(email)
	}
	first, last := domain.SplitDisplayName(domain.NormalizeHumanName(in.DisplayName))
	photo := strings.TrimSpace(in.PhotoURL)

	now := s.clk.Now()

	t, err := s.repo.GetBySubject(ctx, subject)
	switch {
	case err == nil:
		applyProfile(&t, email, first, last, photo)
		t.UpdatedAt = now
		if err := s.repo.Update(ctx, t); err != nil {
			return domain.Traveler{}, s.storeError("update traveler", err)
		}
		return toDomain(t), nil
	case !errors.Is(err, travelerrepo.ErrNotFound):
		return domain.Traveler{}, s.storeError("get traveler by subject", err)
	}

	if email != "" {
		t, err := s.repo.GetByEmail(ctx, email)
		switch {
		case err == nil && t.Subject == nil:
			sub := subject
			t.Subject = &sub
			applyProfile(&t, email, first, last, photo)
			t.UpdatedAt = now
			if err := s.repo.Update(ctx, t); err != nil {
				return domain.Traveler{}, s.storeError("bind traveler subject", err)
			}
			s.log.Info("bound pre-provisioned traveler", zap.String("travelerId", string(t.ID)))
			return toDomain(t), nil
		case err == nil:
			return domain.Traveler{}, &Error{
				Status:  409,
				Code:    "EMAIL_ALREADY_IN_USE",
				Message: "email address is already in use",
			}
		case !errors.Is(err, travelerrepo.ErrNotFound):
			return domain.Traveler{}, s.storeError("get traveler by email", err)
		}
	}

	sub := subject
	t = travelerrepo.Traveler{
		ID:        s.newTravelerID(),
		Subject:   &sub,
		TenantID:  s.tenantID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	applyProfile(&t, email, first, last, photo)
	if err := s.repo.Create(ctx, t); err != nil {
		if errors.Is(err, travelerrepo.ErrSubjectAlreadyBound) {
			// Lost a race with a concurrent first sign-in; the winner's row is the traveler.
			existing, gerr := s.repo.GetBySubject(ctx, subject)
			if gerr != nil {
				return domain.Traveler{}, s.storeError("get traveler by subject", gerr)
			}
			return toDomain(existing), nil
		}
		return domain.Traveler{}, s.storeError("create traveler", err)
	}
	return toDomain(t), nil
}

func (s *Service) GetMe(ctx context.Context, subject domain.SubjectID) (domain.Traveler, error) {
	t, err := s.repo.GetBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, travelerrepo.ErrNotFound) {
			return domain.Traveler{}, errNotProvisioned()
		}
		return domain.Traveler{}, s.storeError("get traveler by subject", err)
	}
	return toDomain(t), nil
}

// Provision creates a traveler without a subject, to be bound on first sign-in.
// It returns the existing traveler when the email is already known.
func (s *Service) Provision(ctx context.Context, email string, displayName string) (domain.Traveler, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return domain.Traveler{}, errValidation("email", err.Error())
	}
	email = domain.NormalizeEmail(email)

	if t, err := s.repo.GetByEmail(ctx, email); err == nil {
		return toDomain(t), nil
	} else if !errors.Is(err, travelerrepo.ErrNotFound) {
		return domain.Traveler{}, s.storeError("get traveler by email", err)
	}

	now := s.clk.Now()
	first, last := domain.SplitDisplayName(domain.NormalizeHumanName(displayName))
	t := travelerrepo.Traveler{
		ID:        s.newTravelerID(),
		TenantID:  s.tenantID,
		Email:     &email,
		FirstName: first,
		LastName:  last,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return domain.Traveler{}, s.storeError("provision traveler", err)
	}
	return toDomain(t), nil
}

func (s *Service) storeError(op string, err error) error {
	s.log.Error("traveler store failure", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

// applyProfile overwrites profile fields the identity provider supplied; absent claims keep
// the stored value.
func applyProfile(t *travelerrepo.Traveler, email string, first, last *string, photo string) {
	if email != "" {
		t.Email = &email
	}
	if first != nil {
		t.FirstName = first
		t.LastName = last
	}
	if photo != "" {
		t.PhotoURL = &photo
	}
}

func validateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	// Ensure no "Name <email@x>" format sneaks in.
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}

func toDomain(t travelerrepo.Traveler) domain.Traveler {
	return domain.Traveler{
		ID:        t.ID,
		Subject:   t.Subject,
		TenantID:  t.TenantID,
		Email:     t.Email,
		FirstName: t.FirstName,
		LastName:  t.LastName,
		PhotoURL:  t.PhotoURL,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
