package crewrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tripwell/crew-planner-api/internal/domain"
	"github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
)

type memberKey struct {
	crewID     domain.CrewID
	travelerID domain.TravelerID
}

// Repo is an in-memory implementation of crewrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	crews      map[domain.CrewID]crewrepo.Crew
	idByHandle map[string]domain.CrewID
	idByLegacy map[string]domain.CrewID

	memberships map[memberKey]crewrepo.Membership
	roles       map[domain.CrewID][]crewrepo.Role
	joinCodes   map[string]crewrepo.JoinCode
}

func NewRepo() *Repo {
	return &Repo{
		crews:       make(map[domain.CrewID]crewrepo.Crew),
		idByHandle:  make(map[string]domain.CrewID),
		idByLegacy:  make(map[string]domain.CrewID),
		memberships: make(map[memberKey]crewrepo.Membership),
		roles:       make(map[domain.CrewID][]crewrepo.Role),
		joinCodes:   make(map[string]crewrepo.JoinCode),
	}
}

// SeedLegacyCrew stores a crew that predates the join code registry. The crew's
// LegacyJoinCode is indexed but no registry row is written.
func (r *Repo) SeedLegacyCrew(c crewrepo.Crew) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putCrew(c)
}

// SeedRole grants a role outside of Bootstrap, for crews stored with SeedLegacyCrew.
func (r *Repo) SeedRole(role crewrepo.Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[role.CrewID] = append(r.roles[role.CrewID], role)
}

func (r *Repo) Bootstrap(ctx context.Context, b crewrepo.Bootstrap) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	// Validate every row before mutating anything so a failure leaves no partial state.
	if _, ok := r.crews[b.Crew.ID]; ok {
		return crewrepo.ErrAlreadyExists
	}
	if b.Crew.Handle != nil {
		if _, ok := r.idByHandle[*b.Crew.Handle]; ok {
			return crewrepo.ErrHandleTaken
		}
	}
	if r.codeTaken(b.JoinCode.Code) {
		return crewrepo.ErrJoinCodeTaken
	}
	if b.Crew.LegacyJoinCode != nil && r.codeTaken(*b.Crew.LegacyJoinCode) {
		return crewrepo.ErrJoinCodeTaken
	}

	r.putCrew(b.Crew)
	r.memberships[memberKey{b.Membership.CrewID, b.Membership.TravelerID}] = b.Membership
	r.roles[b.Role.CrewID] = append(r.roles[b.Role.CrewID], b.Role)
	r.joinCodes[b.JoinCode.Code] = cloneJoinCode(b.JoinCode)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.CrewID) (crewrepo.Crew, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.crews[id]
	if !ok {
		return crewrepo.Crew{}, crewrepo.ErrNotFound
	}
	return cloneCrew(c), nil
}

func (r *Repo) GetByHandle(ctx context.Context, handle string) (crewrepo.Crew, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByHandle[handle]
	if !ok {
		return crewrepo.Crew{}, crewrepo.ErrNotFound
	}
	return cloneCrew(r.crews[id]), nil
}

func (r *Repo) GetByLegacyJoinCode(ctx context.Context, code string) (crewrepo.Crew, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByLegacy[code]
	if !ok {
		return crewrepo.Crew{}, crewrepo.ErrNotFound
	}
	return cloneCrew(r.crews[id]), nil
}

func (r *Repo) HandleExists(ctx context.Context, handle string) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.idByHandle[handle]
	return ok, nil
}

func (r *Repo) ListForTraveler(ctx context.Context, travelerID domain.TravelerID) ([]crewrepo.Crew, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ms []crewrepo.Membership
	for k, m := range r.memberships {
		if k.travelerID == travelerID {
			ms = append(ms, m)
		}
	}
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CrewID < ms[j].CrewID
		}
		return ms[i].CreatedAt.After(ms[j].CreatedAt)
	})

	out := make([]crewrepo.Crew, 0, len(ms))
	for _, m := range ms {
		if c, ok := r.crews[m.CrewID]; ok {
			out = append(out, cloneCrew(c))
		}
	}
	return out, nil
}

func (r *Repo) ListWithLegacyJoinCode(ctx context.Context) ([]crewrepo.Crew, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]crewrepo.Crew, 0, len(r.idByLegacy))
	for _, id := range r.idByLegacy {
		out = append(out, cloneCrew(r.crews[id]))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *Repo) AddMember(ctx context.Context, m crewrepo.Membership) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.crews[m.CrewID]; !ok {
		return crewrepo.ErrNotFound
	}
	k := memberKey{m.CrewID, m.TravelerID}
	if _, ok := r.memberships[k]; ok {
		return crewrepo.ErrAlreadyMember
	}
	r.memberships[k] = m
	return nil
}

func (r *Repo) GetMembership(ctx context.Context, crewID domain.CrewID, travelerID domain.TravelerID) (crewrepo.Membership, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.memberships[memberKey{crewID, travelerID}]
	if !ok {
		return crewrepo.Membership{}, crewrepo.ErrNotFound
	}
	return m, nil
}

func (r *Repo) ListMembers(ctx context.Context, crewID domain.CrewID) ([]crewrepo.Membership, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []crewrepo.Membership
	for k, m := range r.memberships {
		if k.crewID == crewID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].TravelerID < out[j].TravelerID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Repo) CountMembers(ctx context.Context, crewID domain.CrewID) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for k := range r.memberships {
		if k.crewID == crewID {
			n++
		}
	}
	return n, nil
}

func (r *Repo) ListRoles(ctx context.Context, crewID domain.CrewID) ([]crewrepo.Role, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]crewrepo.Role(nil), r.roles[crewID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *Repo) HasRole(ctx context.Context, crewID domain.CrewID, travelerID domain.TravelerID, role domain.Role) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rr := range r.roles[crewID] {
		if rr.TravelerID == travelerID && rr.Role == role {
			return true, nil
		}
	}
	return false, nil
}

func (r *Repo) CreateJoinCode(ctx context.Context, jc crewrepo.JoinCode) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.crews[jc.CrewID]; !ok {
		return crewrepo.ErrNotFound
	}
	if _, ok := r.joinCodes[jc.Code]; ok {
		return crewrepo.ErrJoinCodeTaken
	}
	if id, ok := r.idByLegacy[jc.Code]; ok && id != jc.CrewID {
		return crewrepo.ErrJoinCodeTaken
	}
	r.joinCodes[jc.Code] = cloneJoinCode(jc)
	return nil
}

func (r *Repo) EnsureJoinCode(ctx context.Context, jc crewrepo.JoinCode) (crewrepo.JoinCode, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.joinCodes[jc.Code]; ok {
		return cloneJoinCode(existing), nil
	}
	if _, ok := r.crews[jc.CrewID]; !ok {
		return crewrepo.JoinCode{}, crewrepo.ErrNotFound
	}
	r.joinCodes[jc.Code] = cloneJoinCode(jc)
	return cloneJoinCode(jc), nil
}

func (r *Repo) GetJoinCode(ctx context.Context, code string) (crewrepo.JoinCode, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	jc, ok := r.joinCodes[code]
	if !ok {
		return crewrepo.JoinCode{}, crewrepo.ErrNotFound
	}
	return cloneJoinCode(jc), nil
}

func (r *Repo) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.codeTaken(code), nil
}

func (r *Repo) ListJoinCodes(ctx context.Context, crewID domain.CrewID) ([]crewrepo.JoinCode, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []crewrepo.JoinCode
	for _, jc := range r.joinCodes {
		if jc.CrewID == crewID {
			out = append(out, cloneJoinCode(jc))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Code < out[j].Code
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *Repo) DeactivateJoinCode(ctx context.Context, code string, at time.Time) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	jc, ok := r.joinCodes[code]
	if !ok {
		return crewrepo.ErrNotFound
	}
	if jc.IsActive {
		jc.IsActive = false
		jc.DeactivatedAt = &at
		r.joinCodes[code] = jc
	}
	return nil
}

// codeTaken reports whether code is used by the registry or a legacy crew. Callers hold the lock.
func (r *Repo) codeTaken(code string) bool {
	if _, ok := r.joinCodes[code]; ok {
		return true
	}
	_, ok := r.idByLegacy[code]
	return ok
}

// putCrew stores c and its indexes. Callers hold the write lock.
func (r *Repo) putCrew(c crewrepo.Crew) {
	r.crews[c.ID] = cloneCrew(c)
	if c.Handle != nil {
		r.idByHandle[*c.Handle] = c.ID
	}
	if c.LegacyJoinCode != nil {
		r.idByLegacy[*c.LegacyJoinCode] = c.ID
	}
}

func cloneCrew(c crewrepo.Crew) crewrepo.Crew {
	out := c
	out.Description = cloneStringPtr(c.Description)
	out.Handle = cloneStringPtr(c.Handle)
	out.LegacyJoinCode = cloneStringPtr(c.LegacyJoinCode)
	return out
}

func cloneJoinCode(jc crewrepo.JoinCode) crewrepo.JoinCode {
	out := jc
	out.ExpiresAt = cloneTimePtr(jc.ExpiresAt)
	out.DeactivatedAt = cloneTimePtr(jc.DeactivatedAt)
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
