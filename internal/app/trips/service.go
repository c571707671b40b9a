package trips

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tripwell/crew-planner-api/internal/domain"
	clockport "github.com/tripwell/crew-planner-api/internal/ports/out/clock"
	"github.com/tripwell/crew-planner-api/internal/ports/out/triprepo"
)

// Crews is the slice of the crew service trips depend on.
type Crews interface {
	IsMember(ctx context.Context, crewID domain.CrewID, traveler domain.TravelerID) (bool, error)
	InvalidatePreview(ctx context.Context, crewID domain.CrewID)
}

type Service struct {
	trips triprepo.Repository
	crews Crews
	clk   clockport.Clock
	log   *zap.Logger

	newTripID func() domain.TripID
}

func NewService(tripsRepo triprepo.Repository, crews Crews, clk clockport.Clock, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		trips: tripsRepo,
		crews: crews,
		clk:   clk,
		log:   log.Named("trips"),
		newTripID: func() domain.TripID {
			return domain.TripID(uuid.NewString())
		},
	}
}

// SetNewTripIDForTest overrides trip ID generation for deterministic tests.
// It should not be used in production code.
func (s *Service) SetNewTripIDForTest(fn func() domain.TripID) {
	if fn != nil {
		s.newTripID = fn
	}
}

func errTripNotFound() *Error {
	return &Error{Status: 404, Code: "TRIP_NOT_FOUND", Message: "trip not found"}
}

func errCrewNotFound() *Error {
	return &Error{Status: 404, Code: "CREW_NOT_FOUND", Message: "crew not found"}
}

func errValidation(field, msg string) *Error {
	return &Error{Status: 422, Code: "VALIDATION_ERROR", Message: "invalid " + field, Details: map[string]any{field: msg}}
}

func (s *Service) CreateTrip(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID, in CreateTripInput) (domain.Trip, error) {
	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		return domain.Trip{}, errValidation("name", "must be non-empty")
	}
	purpose := in.Purpose
	if purpose == "" {
		purpose = domain.TripPurposeGeneral
	}
	if !purpose.Valid() {
		return domain.Trip{}, errValidation("purpose", "must be one of FAMILY, ANNIVERSARY, WORK, RACE, FRIENDS, COUPLES, GENERAL")
	}

	if err := s.requireMember(ctx, caller, crewID, errCrewNotFound()); err != nil {
		return domain.Trip{}, err
	}

	now := s.clk.Now()
	t := triprepo.Trip{
		ID:          s.newTripID(),
		CrewID:      crewID,
		Name:        name,
		Destination: trimmedOrNil(in.Destination),
		Purpose:     purpose,
		StartDate:   dateOnly(in.StartDate),
		EndDate:     dateOnly(in.EndDate),
		CreatedBy:   caller,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := applyMetadata(&t); err != nil {
		return domain.Trip{}, err
	}

	if err := s.trips.Create(ctx, t); err != nil {
		if errors.Is(err, triprepo.ErrAlreadyExists) {
			// Extremely unlikely (UUID collision); treat as conflict.
			return domain.Trip{}, &Error{Status: 409, Code: "TRIP_ID_CONFLICT", Message: "trip id conflict"}
		}
		return domain.Trip{}, s.storeError("create trip", err)
	}
	s.crews.InvalidatePreview(ctx, crewID)
	s.log.Info("trip created", zap.String("tripId", string(t.ID)), zap.String("crewId", string(crewID)))
	return toDomain(t), nil
}

func (s *Service) UpdateTrip(ctx context.Context, caller domain.TravelerID, tripID domain.TripID, in UpdateTripInput) (domain.Trip, error) {
	t, err := s.loadVisible(ctx, caller, tripID)
	if err != nil {
		return domain.Trip{}, err
	}

	if in.Name.IsSpecified() {
		if in.Name.IsNull() {
			return domain.Trip{}, errValidation("name", "cannot be null")
		}
		name := domain.NormalizeHumanName(in.Name.Value())
		if name == "" {
			return domain.Trip{}, errValidation("name", "must be non-empty")
		}
		t.Name = name
	}

	if in.Purpose.IsSpecified() {
		if in.Purpose.IsNull() || !in.Purpose.Value().Valid() {
			return domain.Trip{}, errValidation("purpose", "must be one of FAMILY, ANNIVERSARY, WORK, RACE, FRIENDS, COUPLES, GENERAL")
		}
		t.Purpose = in.Purpose.Value()
	}

	if in.Destination.IsSpecified() {
		if in.Destination.IsNull() {
			t.Destination = nil
		} else {
			v := in.Destination.Value()
			t.Destination = trimmedOrNil(&v)
		}
	}

	applyDate := func(dst **time.Time, o Optional[time.Time]) {
		if !o.IsSpecified() {
			return
		}
		if o.IsNull() {
			*dst = nil
			return
		}
		v := o.Value()
		*dst = dateOnly(&v)
	}
	applyDate(&t.StartDate, in.StartDate)
	applyDate(&t.EndDate, in.EndDate)

	if err := applyMetadata(&t); err != nil {
		return domain.Trip{}, err
	}

	t.UpdatedAt = s.clk.Now()
	if err := s.trips.Save(ctx, t); err != nil {
		return domain.Trip{}, s.storeError("save trip", err)
	}
	return toDomain(t), nil
}

func (s *Service) GetTrip(ctx context.Context, caller domain.TravelerID, tripID domain.TripID) (domain.Trip, error) {
	t, err := s.loadVisible(ctx, caller, tripID)
	if err != nil {
		return domain.Trip{}, err
	}
	return toDomain(t), nil
}

// ListCrewTrips returns the crew's trips, newest first.
func (s *Service) ListCrewTrips(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID) ([]domain.Trip, error) {
	if err := s.requireMember(ctx, caller, crewID, errCrewNotFound()); err != nil {
		return nil, err
	}
	ts, err := s.trips.ListByCrew(ctx, crewID)
	if err != nil {
		return nil, s.storeError("list trips", err)
	}
	out := make([]domain.Trip, 0, len(ts))
	for _, t := range ts {
		out = append(out, toDomain(t))
	}
	return out, nil
}

// loadVisible returns the trip if caller belongs to its crew. Trips of other crews are
// reported as not found.
func (s *Service) loadVisible(ctx context.Context, caller domain.TravelerID, tripID domain.TripID) (triprepo.Trip, error) {
	t, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, triprepo.ErrNotFound) {
			return triprepo.Trip{}, errTripNotFound()
		}
		return triprepo.Trip{}, s.storeError("get trip", err)
	}
	if err := s.requireMember(ctx, caller, t.CrewID, errTripNotFound()); err != nil {
		return triprepo.Trip{}, err
	}
	return t, nil
}

func (s *Service) requireMember(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID, notFound *Error) error {
	ok, err := s.crews.IsMember(ctx, crewID, caller)
	if err != nil {
		return s.storeError("check membership", err)
	}
	if !ok {
		return notFound
	}
	return nil
}

func (s *Service) storeError(op string, err error) error {
	s.log.Error("trip store failure", zap.String("op", op), zap.Error(err))
	return &Error{Status: 500, Code: "INTERNAL_ERROR", Message: "internal error"}
}

// applyMetadata validates the date range and recomputes the derived fields.
func applyMetadata(t *triprepo.Trip) error {
	t.Season, t.DaysTotal, t.DateRange = nil, nil, nil
	if t.StartDate == nil || t.EndDate == nil {
		return nil
	}
	if t.EndDate.Before(*t.StartDate) {
		return errValidation("endDate", "must be on or after startDate")
	}
	m := domain.ComputeTripMetadata(*t.StartDate, *t.EndDate)
	season := string(m.Season)
	days := m.DaysTotal
	rng := m.DateRange
	t.Season, t.DaysTotal, t.DateRange = &season, &days, &rng
	return nil
}

// dateOnly truncates to UTC midnight.
func dateOnly(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	u := p.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	if v == "" {
		return nil
	}
	return &v
}

func toDomain(t triprepo.Trip) domain.Trip {
	out := domain.Trip{
		ID:          t.ID,
		CrewID:      t.CrewID,
		Name:        t.Name,
		Destination: t.Destination,
		Purpose:     t.Purpose,
		StartDate:   t.StartDate,
		EndDate:     t.EndDate,
		CreatedBy:   t.CreatedBy,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Season != nil && t.DaysTotal != nil && t.DateRange != nil {
		out.Metadata = &domain.TripMetadata{
			Season:    domain.Season(*t.Season),
			DaysTotal: *t.DaysTotal,
			DateRange: *t.DateRange,
		}
	}
	return out
}
