package travelerrepo

import (
	"context"
	"sync"

	"github.com/tripwell/crew-planner-api/internal/domain"
	"github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
)

// Repo is an in-memory implementation of travelerrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.TravelerID]travelerrepo.Traveler
	idBySub   map[domain.SubjectID]domain.TravelerID
	idByEmail map[string]domain.TravelerID
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.TravelerID]travelerrepo.Traveler),
		idBySub:   make(map[domain.SubjectID]domain.TravelerID),
		idByEmail: make(map[string]domain.TravelerID),
	}
}

func (r *Repo) Create(ctx context.Context, t travelerrepo.Traveler) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[t.ID]; ok {
		return travelerrepo.ErrAlreadyExists
	}
	if t.Subject != nil {
		if _, ok := r.idBySub[*t.Subject]; ok {
			return travelerrepo.ErrSubjectAlreadyBound
		}
	}
	if t.Email != nil {
		if _, ok := r.idByEmail[domain.NormalizeEmail(*t.Email)]; ok {
			return travelerrepo.ErrEmailAlreadyInUse
		}
	}

	r.put(t)
	return nil
}

func (r *Repo) Update(ctx context.Context, t travelerrepo.Traveler) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[t.ID]
	if !ok {
		return travelerrepo.ErrNotFound
	}
	// A bound subject is immutable; an unbound one may be bound once.
	if existing.Subject != nil && (t.Subject == nil || *existing.Subject != *t.Subject) {
		return travelerrepo.ErrSubjectAlreadyBound
	}
	if existing.Subject == nil && t.Subject != nil {
		if _, taken := r.idBySub[*t.Subject]; taken {
			return travelerrepo.ErrSubjectAlreadyBound
		}
	}
	if t.Email != nil {
		if id, taken := r.idByEmail[domain.NormalizeEmail(*t.Email)]; taken && id != t.ID {
			return travelerrepo.ErrEmailAlreadyInUse
		}
	}

	if existing.Email != nil {
		delete(r.idByEmail, domain.NormalizeEmail(*existing.Email))
	}
	r.put(t)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TravelerID) (travelerrepo.Traveler, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return travelerrepo.Traveler{}, travelerrepo.ErrNotFound
	}
	return cloneTraveler(t), nil
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (travelerrepo.Traveler, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.idBySub[subject])
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (travelerrepo.Traveler, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.idByEmail[domain.NormalizeEmail(email)])
}

func (r *Repo) lookup(id domain.TravelerID) (travelerrepo.Traveler, error) {
	if id == "" {
		return travelerrepo.Traveler{}, travelerrepo.ErrNotFound
	}
	t, ok := r.byID[id]
	if !ok {
		return travelerrepo.Traveler{}, travelerrepo.ErrNotFound
	}
	return cloneTraveler(t), nil
}

// put stores t and its indexes. Callers hold the write lock.
func (r *Repo) put(t travelerrepo.Traveler) {
	r.byID[t.ID] = cloneTraveler(t)
	if t.Subject != nil {
		r.idBySub[*t.Subject] = t.ID
	}
	if t.Email != nil {
		r.idByEmail[domain.NormalizeEmail(*t.Email)] = t.ID
	}
}

func cloneTraveler(t travelerrepo.Traveler) travelerrepo.Traveler {
	out := t
	if t.Subject != nil {
		s := *t.Subject
		out.Subject = &s
	}
	out.Email = cloneStringPtr(t.Email)
	out.FirstName = cloneStringPtr(t.FirstName)
	out.LastName = cloneStringPtr(t.LastName)
	out.PhotoURL = cloneStringPtr(t.PhotoURL)
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
