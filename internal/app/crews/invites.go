package crews

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tripwell/crew-planner-api/internal/domain"
	"github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
	"github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
)

// Resolution paths, used as metric labels.
const (
	pathHandle   = "handle"
	pathRegistry = "registry"
	pathLegacy   = "legacy"
	pathNone     = "none"
)

// ResolveInvite turns a handle or join code into a crew preview.
//
// A lowercase slug-shaped value is tried as a handle first. Anything else, or a handle miss,
// is uppercased and looked up in the join code registry. A registry miss that matches a
// crew's legacy code inserts the registry row on the fly. Registry entries must be active and
// unexpired; every failure yields the same INVITE_INVALID error.
func (s *Service) ResolveInvite(ctx context.Context, slugOrCode string) (domain.CrewPreview, error) {
	c, err := s.resolveCrew(ctx, slugOrCode)
	if err != nil {
		return domain.CrewPreview{}, err
	}
	return s.preview(ctx, c)
}

// JoinCrew adds traveler to the crew behind slugOrCode.
func (s *Service) JoinCrew(ctx context.Context, slugOrCode string, traveler domain.TravelerID) (Joined, error) {
	if traveler == "" {
		return Joined{}, errValidation("travelerId", "must be non-empty")
	}
	if strings.TrimSpace(slugOrCode) == "" {
		return Joined{}, errValidation("code", "must be non-empty")
	}

	c, err := s.resolveCrew(ctx, slugOrCode)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) && ae.Code == CodeInviteInvalid {
			s.metrics.joins.WithLabelValues("invalid").Inc()
		}
		return Joined{}, err
	}

	if err := s.addMembership(ctx, crewrepo.Membership{CrewID: c.ID, TravelerID: traveler, CreatedAt: s.clk.Now()}); err != nil {
		return Joined{}, err
	}
	s.log.Info("traveler joined crew", zap.String("crewId", string(c.ID)), zap.String("travelerId", string(traveler)))
	return Joined{CrewID: c.ID}, nil
}

func (s *Service) resolveCrew(ctx context.Context, slugOrCode string) (crewrepo.Crew, error) {
	v := strings.TrimSpace(slugOrCode)
	if v == "" {
		s.metrics.inviteResolutions.WithLabelValues(pathNone, "invalid").Inc()
		return crewrepo.Crew{}, errInviteInvalid()
	}

	if domain.LooksLikeHandle(v) {
		c, err := s.crews.GetByHandle(ctx, v)
		switch {
		case err == nil:
			s.metrics.inviteResolutions.WithLabelValues(pathHandle, "ok").Inc()
			return c, nil
		case !errors.Is(err, crewrepo.ErrNotFound):
			return crewrepo.Crew{}, s.lookupFailed("get crew by handle", err)
		}
	}

	code := domain.NormalizeJoinCode(v)
	path := pathRegistry
	jc, err := s.crews.GetJoinCode(ctx, code)
	if errors.Is(err, crewrepo.ErrNotFound) {
		path = pathLegacy
		jc, err = s.healLegacyCode(ctx, code)
	}
	if err != nil {
		if errors.Is(err, crewrepo.ErrNotFound) {
			s.metrics.inviteResolutions.WithLabelValues(path, "invalid").Inc()
			return crewrepo.Crew{}, errInviteInvalid()
		}
		return crewrepo.Crew{}, s.lookupFailed("get join code", err)
	}

	if !toDomainJoinCode(jc).Usable(s.clk.Now()) {
		s.metrics.inviteResolutions.WithLabelValues(path, "invalid").Inc()
		return crewrepo.Crew{}, errInviteInvalid()
	}

	c, err := s.crews.GetByID(ctx, jc.CrewID)
	if err != nil {
		if errors.Is(err, crewrepo.ErrNotFound) {
			s.metrics.inviteResolutions.WithLabelValues(path, "invalid").Inc()
			return crewrepo.Crew{}, errInviteInvalid()
		}
		return crewrepo.Crew{}, s.lookupFailed("get crew", err)
	}
	s.metrics.inviteResolutions.WithLabelValues(path, "ok").Inc()
	return c, nil
}

// healLegacyCode inserts a registry row for a crew that only carries the legacy code.
// It returns crewrepo.ErrNotFound when no crew has the code.
func (s *Service) healLegacyCode(ctx context.Context, code string) (crewrepo.JoinCode, error) {
	c, err := s.crews.GetByLegacyJoinCode(ctx, code)
	if err != nil {
		return crewrepo.JoinCode{}, err
	}
	jc, err := s.crews.EnsureJoinCode(ctx, crewrepo.JoinCode{
		Code:      code,
		CrewID:    c.ID,
		IsActive:  true,
		CreatedAt: s.clk.Now(),
	})
	if err != nil {
		return crewrepo.JoinCode{}, err
	}
	s.metrics.legacyHeals.Inc()
	s.log.Info("registered legacy join code", zap.String("crewId", string(c.ID)))
	return jc, nil
}

func (s *Service) lookupFailed(op string, err error) error {
	s.metrics.inviteResolutions.WithLabelValues(pathNone, "error").Inc()
	s.log.Error("invite lookup failed", zap.String("op", op), zap.Error(err))
	return errInviteLookupFailed()
}

func (s *Service) preview(ctx context.Context, c crewrepo.Crew) (domain.CrewPreview, error) {
	if p, ok, err := s.cache.Get(ctx, c.ID); err != nil {
		s.log.Warn("preview cache get failed", zap.String("crewId", string(c.ID)), zap.Error(err))
	} else if ok {
		return p, nil
	}

	p := domain.CrewPreview{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.crews.CountMembers(gctx, c.ID)
		p.MemberCount = n
		return err
	})
	g.Go(func() error {
		n, err := s.trips.CountByCrew(gctx, c.ID)
		p.TripCount = n
		return err
	})
	g.Go(func() error {
		admin, err := s.firstAdmin(gctx, c.ID)
		p.Admin = admin
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.CrewPreview{}, s.lookupFailed("build preview", err)
	}

	if err := s.cache.Set(ctx, p); err != nil {
		s.log.Warn("preview cache set failed", zap.String("crewId", string(c.ID)), zap.Error(err))
	}
	return p, nil
}

func (s *Service) firstAdmin(ctx context.Context, crewID domain.CrewID) (*domain.PublicIdentity, error) {
	roles, err := s.crews.ListRoles(ctx, crewID)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.Role != domain.RoleAdmin {
			continue
		}
		t, err := s.travelers.GetByID(ctx, r.TravelerID)
		if err != nil {
			if errors.Is(err, travelerrepo.ErrNotFound) {
				continue
			}
			return nil, err
		}
		id := publicIdentity(t)
		return &id, nil
	}
	return nil, nil
}

func (s *Service) invalidatePreview(ctx context.Context, crewID domain.CrewID) {
	if err := s.cache.Invalidate(ctx, crewID); err != nil {
		s.log.Warn("preview cache invalidate failed", zap.String("crewId", string(crewID)), zap.Error(err))
	}
}

// InvalidatePreview drops any cached preview for crewID. Trip writes call it so counts stay
// current.
func (s *Service) InvalidatePreview(ctx context.Context, crewID domain.CrewID) {
	s.invalidatePreview(ctx, crewID)
}

// GetInviteLink returns the crew's shareable link. The handle is preferred, then the newest
// usable registry code, then a legacy code that has not been registered. When none of these
// exist an admin gets a fresh code; other members get NOT_AUTHORIZED.
func (s *Service) GetInviteLink(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID) (InviteLink, error) {
	c, err := s.requireMember(ctx, caller, crewID)
	if err != nil {
		return InviteLink{}, err
	}
	if c.Handle != nil {
		h := *c.Handle
		return InviteLink{URL: s.InviteURL(&h, ""), Handle: &h}, nil
	}

	codes, err := s.crews.ListJoinCodes(ctx, crewID)
	if err != nil {
		return InviteLink{}, s.lookupFailed("list join codes", err)
	}
	now := s.clk.Now()
	for _, jc := range codes {
		if toDomainJoinCode(jc).Usable(now) {
			code := jc.Code
			return InviteLink{URL: s.InviteURL(nil, code), Code: &code}, nil
		}
	}
	if c.LegacyJoinCode != nil {
		code := domain.NormalizeJoinCode(*c.LegacyJoinCode)
		// A registry row for the legacy code is authoritative; it was not usable above.
		_, err := s.crews.GetJoinCode(ctx, code)
		switch {
		case errors.Is(err, crewrepo.ErrNotFound):
			return InviteLink{URL: s.InviteURL(nil, code), Code: &code}, nil
		case err != nil:
			return InviteLink{}, s.lookupFailed("get join code", err)
		}
	}

	admin, err := s.crews.HasRole(ctx, crewID, caller, domain.RoleAdmin)
	if err != nil {
		return InviteLink{}, s.internal("check role", err)
	}
	if !admin {
		return InviteLink{}, errNotAuthorized()
	}
	inv, err := s.issue(ctx, crewID, nil)
	if err != nil {
		return InviteLink{}, err
	}
	return InviteLink{URL: inv.URL, Code: &inv.Code}, nil
}

// IssueInvite creates a new active join code. Existing codes stay active.
func (s *Service) IssueInvite(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID, in IssueInviteInput) (Invite, error) {
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.clk.Now()) {
		return Invite{}, errValidation("expiresAt", "must be in the future")
	}
	if _, err := s.requireAdmin(ctx, caller, crewID); err != nil {
		return Invite{}, err
	}
	return s.issue(ctx, crewID, in.ExpiresAt)
}

func (s *Service) issue(ctx context.Context, crewID domain.CrewID, expiresAt *time.Time) (Invite, error) {
	for attempt := 1; attempt <= maxBootstrapAttempts; attempt++ {
		code, err := s.codes.JoinCode(ctx, s.crews.JoinCodeExists)
		if err != nil {
			return Invite{}, s.internal("generate join code", err)
		}
		jc := crewrepo.JoinCode{
			Code:      code,
			CrewID:    crewID,
			IsActive:  true,
			ExpiresAt: expiresAt,
			CreatedAt: s.clk.Now(),
		}
		if err := s.crews.CreateJoinCode(ctx, jc); err != nil {
			if errors.Is(err, crewrepo.ErrJoinCodeTaken) {
				continue
			}
			return Invite{}, s.internal("create join code", err)
		}
		s.log.Info("join code issued", zap.String("crewId", string(crewID)))
		return Invite{JoinCode: toDomainJoinCode(jc), URL: s.InviteURL(nil, code)}, nil
	}
	return Invite{}, s.internal("create join code", errors.New("join code still colliding after retries"))
}

// DeactivateInvite retires a join code. Deactivation is terminal.
func (s *Service) DeactivateInvite(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID, code string) error {
	code = domain.NormalizeJoinCode(code)
	if code == "" {
		return errValidation("code", "must be non-empty")
	}
	if _, err := s.requireAdmin(ctx, caller, crewID); err != nil {
		return err
	}
	jc, err := s.crews.GetJoinCode(ctx, code)
	if errors.Is(err, crewrepo.ErrNotFound) {
		jc, err = s.registerLegacyCode(ctx, crewID, code)
	}
	if err != nil {
		if errors.Is(err, crewrepo.ErrNotFound) {
			return errInviteInvalid()
		}
		return s.lookupFailed("get join code", err)
	}
	if jc.CrewID != crewID {
		return errInviteInvalid()
	}
	if err := s.crews.DeactivateJoinCode(ctx, code, s.clk.Now()); err != nil {
		if errors.Is(err, crewrepo.ErrNotFound) {
			return errInviteInvalid()
		}
		return s.internal("deactivate join code", err)
	}
	s.log.Info("join code deactivated", zap.String("crewId", string(crewID)))
	return nil
}

// registerLegacyCode inserts the registry row for crewID's unregistered legacy code so it can
// be deactivated. It returns crewrepo.ErrNotFound when code is not that crew's legacy code.
func (s *Service) registerLegacyCode(ctx context.Context, crewID domain.CrewID, code string) (crewrepo.JoinCode, error) {
	c, err := s.crews.GetByLegacyJoinCode(ctx, code)
	if err != nil {
		return crewrepo.JoinCode{}, err
	}
	if c.ID != crewID {
		return crewrepo.JoinCode{}, crewrepo.ErrNotFound
	}
	return s.crews.EnsureJoinCode(ctx, crewrepo.JoinCode{
		Code:      code,
		CrewID:    crewID,
		IsActive:  true,
		CreatedAt: s.clk.Now(),
	})
}

// ListInvites returns the crew's registry codes, newest first.
func (s *Service) ListInvites(ctx context.Context, caller domain.TravelerID, crewID domain.CrewID) ([]Invite, error) {
	if _, err := s.requireAdmin(ctx, caller, crewID); err != nil {
		return nil, err
	}
	codes, err := s.crews.ListJoinCodes(ctx, crewID)
	if err != nil {
		return nil, s.lookupFailed("list join codes", err)
	}
	out := make([]Invite, 0, len(codes))
	for _, jc := range codes {
		out = append(out, Invite{JoinCode: toDomainJoinCode(jc), URL: s.InviteURL(nil, jc.Code)})
	}
	return out, nil
}

// BackfillLegacyCodes inserts registry rows for every crew that still only has a legacy code.
// It is the bulk form of the self-heal ResolveInvite performs lazily.
func (s *Service) BackfillLegacyCodes(ctx context.Context) (BackfillResult, error) {
	cs, err := s.crews.ListWithLegacyJoinCode(ctx)
	if err != nil {
		return BackfillResult{}, err
	}
	var res BackfillResult
	for _, c := range cs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++
		code := domain.NormalizeJoinCode(*c.LegacyJoinCode)
		if _, err := s.crews.GetJoinCode(ctx, code); err == nil {
			continue
		} else if !errors.Is(err, crewrepo.ErrNotFound) {
			return res, err
		}
		if _, err := s.crews.EnsureJoinCode(ctx, crewrepo.JoinCode{
			Code:      code,
			CrewID:    c.ID,
			IsActive:  true,
			CreatedAt: s.clk.Now(),
		}); err != nil {
			return res, err
		}
		res.Inserted++
	}
	return res, nil
}
