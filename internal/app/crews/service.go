package crews

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tripwell/crew-planner-api/internal/domain"
	clockport "github.com/tripwell/crew-planner-api/internal/ports/out/clock"
	"github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
	"github.com/tripwell/crew-planner-api/internal/ports/out/previewcache"
	"github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
	"github.com/tripwell/crew-planner-api/internal/ports/out/triprepo"
)

// maxBootstrapAttempts bounds how often CreateCrew regenerates a code/handle after the store
// reports a uniqueness collision.
const maxBootstrapAttempts = 3

// Options configures a Service. Zero values are usable.
type Options struct {
	// BaseURL prefixes invite links, e.g. "https://app.example.com".
	BaseURL string
	Logger  *zap.Logger
	// Metrics defaults to counters registered on a private registry.
	Metrics *Metrics
	// Cache defaults to previewcache.Nop.
	Cache previewcache.Cache
}

type Service struct {
	crews     crewrepo.Repository
	travelers travelerrepo.Repository
	trips     triprepo.Repository
	cache     previewcache.Cache
	clk       clockport.Clock
	log       *zap.Logger
	metrics   *Metrics
	baseURL   string

	codes     *codeGenerator
	newCrewID func() domain.CrewID
}

func NewService(crewsRepo crewrepo.Repository, travelersRepo travelerrepo.Repository, tripsRepo triprepo.Repository, clk clockport.Clock, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("crews")
	m := opts.Metrics
	if m == nil {
		m = NewMetrics(prometheus.NewRegistry())
	}
	cache := opts.Cache
	if cache == nil {
		cache = previewcache.Nop{}
	}
	codes := newCodeGenerator(clk, log)
	codes.onFallback = m.codeFallbacks.Inc
	return &Service{
		crews:     crewsRepo,
		travelers: travelersRepo,
		trips:     tripsRepo,
		cache:     cache,
		clk:       clk,
		log:       log,
		metrics:   m,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		codes:     codes,
		newCrewID: func() domain.CrewID {
			return domain.CrewID(uuid.NewString())
		},
	}
}

// InviteURL returns the invite link for a crew with the given handle or code.
func (s *Service) InviteURL(handle *string, code string) string {
	return domain.InviteURL(s.baseURL, handle, code)
}

// CreateCrew creates a crew founded by founder: the crew row, the founder's membership and
// admin role, and an active join code are written atomically.
func (s *Service) CreateCrew(ctx context.Context, founder domain.TravelerID, in CreateCrewInput) (CrewCreated, error) {
	if founder == "" {
		return CrewCreated{}, errValidation("travelerId", "must be non-empty")
	}
	name := domain.NormalizeHumanName(in.Name)
	if name == "" {
		return CrewCreated{}, errValidation("name", "must be non-empty")
	}
	if _, err := s.travelers.GetByID(ctx, founder); err != nil {
		if errors.Is(err, travelerrepo.ErrNotFound) {
			return CrewCreated{}, errTravelerNotFound("travelerId", "no traveler has this id")
		}
		return CrewCreated{}, s.createFailed("get founder", err)
	}
	var desc *string
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			desc = &d
		}
	}

	for attempt := 1; attempt <= maxBootstrapAttempts; attempt++ {
		code, err := s.codes.JoinCode(ctx, s.crews.JoinCodeExists)
		if err != nil {
			return CrewCreated{}, s.createFailed("generate join code", err)
		}
		handle, err := s.codes.Handle(ctx, name, s.crews.HandleExists)
		if err != nil {
			return CrewCreated{}, s.createFailed("generate handle", err)
		}

		now := s.clk.Now()
		id := s.newCrewID()
		b := crewrepo.Bootstrap{
			Crew: crewrepo.Crew{
				ID:          id,
				Name:        name,
				Description: desc,
				Handle:      &handle,
				CreatedBy:   founder,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
			Membership: crewrepo.Membership{CrewID: id, TravelerID: founder, CreatedAt: now},
			Role:       crewrepo.Role{CrewID: id, TravelerID: founder, Role: domain.RoleAdmin, CreatedAt: now},
			JoinCode:   crewrepo.JoinCode{Code: code, CrewID: id, IsActive: true, CreatedAt: now},
		}

		err = s.crews.Bootstrap(ctx, b)
		if err == nil {
			s.metrics.crewsCreated.WithLabelValues("ok").Inc()
			s.log.Info("crew created",
				zap.String("crewId", string(id)),
				zap.String("handle", handle),
				zap.String("travelerId", string(founder)),
			)
			crew := toDomainCrew(b.Crew)
			return CrewCreated{
				Crew:      crew,
				JoinCode:  code,
				InviteURL: s.InviteURL(crew.Handle, code),
			}, nil
		}
		if errors.Is(err, crewrepo.ErrJoinCodeTaken) || errors.Is(err, crewrepo.ErrHandleTaken) {
			s.log.Info("crew bootstrap collided; retrying", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return CrewCreated{}, s.createFailed("bootstrap crew", err)
	}
	return CrewCreated{}, s.createFailed("bootstrap crew", errors.New("unique values still colliding after retries"))
}

func (s *Service) createFailed(op string, err error) error {
	s.metrics.crewsCreated.WithLabelValues("error").Inc()
	s.log.Error("crew creation failed", zap.String("op", op), zap.Error(err))
	return errCrewCreateFailed()
}

// GetCrew returns a crew's details. Non-members get CREW_NOT_FOUND.
func (s *Service) GetCrew(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID) (domain.CrewDetails, error) {
	c, err := s.requireMember(ctx, caller, crewID)
	if err != nil {
		return domain.CrewDetails{}, err
	}

	ms, err := s.crews.ListMembers(ctx, crewID)
	if err != nil {
		return domain.CrewDetails{}, s.internal("list members", err)
	}
	roles, err := s.crews.ListRoles(ctx, crewID)
	if err != nil {
		return domain.CrewDetails{}, s.internal("list roles", err)
	}
	tripCount, err := s.trips.CountByCrew(ctx, crewID)
	if err != nil {
		return domain.CrewDetails{}, s.internal("count trips", err)
	}

	rolesByTraveler := make(map[domain.TravelerID][]domain.Role)
	for _, r := range roles {
		rolesByTraveler[r.TravelerID] = append(rolesByTraveler[r.TravelerID], r.Role)
	}

	members := make([]domain.CrewMember, 0, len(ms))
	for _, m := range ms {
		t, err := s.travelers.GetByID(ctx, m.TravelerID)
		if err != nil {
			if errors.Is(err, travelerrepo.ErrNotFound) {
				continue
			}
			return domain.CrewDetails{}, s.internal("get traveler", err)
		}
		memberRoles := rolesByTraveler[m.TravelerID]
		if len(memberRoles) == 0 {
			memberRoles = []domain.Role{domain.RoleMember}
		}
		members = append(members, domain.CrewMember{
			Identity: publicIdentity(t),
			Email:    t.Email,
			Roles:    memberRoles,
			JoinedAt: m.CreatedAt,
		})
	}

	return domain.CrewDetails{
		Crew:      c,
		Members:   members,
		TripCount: tripCount,
	}, nil
}

// ListMyCrews returns the crews caller belongs to, newest membership first.
func (s *Service) ListMyCrews(ctx context.Context, caller domain.TravelerID) ([]domain.CrewSummary, error) {
	cs, err := s.crews.ListForTraveler(ctx, caller)
	if err != nil {
		return nil, s.internal("list crews for traveler", err)
	}
	out := make([]domain.CrewSummary, 0, len(cs))
	for _, c := range cs {
		members, err := s.crews.CountMembers(ctx, c.ID)
		if err != nil {
			return nil, s.internal("count members", err)
		}
		trips, err := s.trips.CountByCrew(ctx, c.ID)
		if err != nil {
			return nil, s.internal("count trips", err)
		}
		out = append(out, domain.CrewSummary{
			Crew:        toDomainCrew(c),
			MemberCount: members,
			TripCount:   trips,
		})
	}
	return out, nil
}

// AddMemberByEmail adds an existing traveler to a crew. Only admins may call it.
func (s *Service) AddMemberByEmail(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID, email string) (domain.CrewMember, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return domain.CrewMember{}, errValidation("email", "must be non-empty")
	}
	if _, err := s.requireAdmin(ctx, caller, crewID); err != nil {
		return domain.CrewMember{}, err
	}

	t, err := s.travelers.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, travelerrepo.ErrNotFound) {
			return domain.CrewMember{}, errTravelerNotFound("email", "no traveler has this email")
		}
		return domain.CrewMember{}, s.internal("get traveler by email", err)
	}

	m := crewrepo.Membership{CrewID: crewID, TravelerID: t.ID, CreatedAt: s.clk.Now()}
	if err := s.addMembership(ctx, m); err != nil {
		return domain.CrewMember{}, err
	}
	return domain.CrewMember{
		Identity: publicIdentity(t),
		Email:    t.Email,
		Roles:    []domain.Role{domain.RoleMember},
		JoinedAt: m.CreatedAt,
	}, nil
}

// addMembership inserts m, pre-checking for an existing row. The store's unique constraint is
// the final arbiter when two inserts race.
func (s *Service) addMembership(ctx context.Context, m crewrepo.Membership) error {
	if _, err := s.crews.GetMembership(ctx, m.CrewID, m.TravelerID); err == nil {
		s.metrics.joins.WithLabelValues("already_member").Inc()
		return errAlreadyMember()
	} else if !errors.Is(err, crewrepo.ErrNotFound) {
		return s.joinFailed("check membership", err)
	}

	if err := s.crews.AddMember(ctx, m); err != nil {
		if errors.Is(err, crewrepo.ErrAlreadyMember) {
			s.metrics.joins.WithLabelValues("already_member").Inc()
			return errAlreadyMember()
		}
		return s.joinFailed("add member", err)
	}
	s.metrics.joins.WithLabelValues("ok").Inc()
	s.invalidatePreview(ctx, m.CrewID)
	return nil
}

func (s *Service) joinFailed(op string, err error) error {
	s.metrics.joins.WithLabelValues("error").Inc()
	s.log.Error("join failed", zap.String("op", op), zap.Error(err))
	return errJoinFailed()
}

func (s *Service) internal(op string, err error) error {
	s.log.Error("crew store failure", zap.String("op", op), zap.Error(err))
	return errInternal()
}

// requireMember loads the crew and checks that caller belongs to it. Missing crews and
// non-members are indistinguishable.
func (s *Service) requireMember(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID) (domain.Crew, error) {
	c, err := s.crews.GetByID(ctx, crewID)
	if err != nil {
		if errors.Is(err, crewrepo.ErrNotFound) {
			return domain.Crew{}, errCrewNotFound()
		}
		return domain.Crew{}, s.internal("get crew", err)
	}
	if _, err := s.crews.GetMembership(ctx, crewID, caller); err != nil {
		if errors.Is(err, crewrepo.ErrNotFound) {
			return domain.Crew{}, errCrewNotFound()
		}
		return domain.Crew{}, s.internal("get membership", err)
	}
	return toDomainCrew(c), nil
}

func (s *Service) requireAdmin(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID) (domain.Crew, error) {
	c, err := s.requireMember(ctx, caller, crewID)
	if err != nil {
		return domain.Crew{}, err
	}
	ok, err := s.crews.HasRole(ctx, crewID, caller, domain.RoleAdmin)
	if err != nil {
		return domain.Crew{}, s.internal("check role", err)
	}
	if !ok {
		return domain.Crew{}, errNotAuthorized()
	}
	return c, nil
}

// IsMember reports whether traveler belongs to crewID. Other packages use it to scope
// crew-owned resources.
func (s *Service) IsMember(ctx context.Context, crewID domain.CrewID, traveler domain.TravelerID) (bool, error) {
	if _, err := s.crews.GetMembership(ctx, crewID, traveler); err != nil {
		if errors.Is(err, crewrepo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func toDomainCrew(c crewrepo.Crew) domain.Crew {
	return domain.Crew{
		ID:             c.ID,
		Name:           c.Name,
		Description:    c.Description,
		Handle:         c.Handle,
		LegacyJoinCode: c.LegacyJoinCode,
		CreatedBy:      c.CreatedBy,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func toDomainJoinCode(jc crewrepo.JoinCode) domain.JoinCode {
	return domain.JoinCode{
		Code:          jc.Code,
		CrewID:        jc.CrewID,
		IsActive:      jc.IsActive,
		ExpiresAt:     jc.ExpiresAt,
		CreatedAt:     jc.CreatedAt,
		DeactivatedAt: jc.DeactivatedAt,
	}
}

func publicIdentity(t travelerrepo.Traveler) domain.PublicIdentity {
	return domain.PublicIdentity{
		TravelerID: t.ID,
		FirstName:  t.FirstName,
		LastName:   t.LastName,
		PhotoURL:   t.PhotoURL,
	}
}
