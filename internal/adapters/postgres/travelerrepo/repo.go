package travelerrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/tripwell/crew-planner-api/internal/adapters/postgres"
	"github.com/tripwell/crew-planner-api/internal/domain"
	"github.com/tripwell/crew-planner-api/internal/ports/out/travelerrepo"
)

const travelerColumns = `id, subject_sub, tenant_id, email, first_name, last_name, photo_url, created_at, updated_at`

// Repo is a Postgres implementation of travelerrepo.Repository.
// Subjects are scoped to the configured JWT issuer.
type Repo struct {
	pool   *pgxpool.Pool
	issuer string
}

func NewRepo(pool *pgxpool.Pool, jwtIssuer string) *Repo {
	return &Repo{pool: pool, issuer: jwtIssuer}
}

func (r *Repo) Create(ctx context.Context, t travelerrepo.Traveler) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(t.ID))
	if err != nil {
		return fmt.Errorf("invalid traveler id: %w", err)
	}
	iss, sub := r.subjectArgs(t.Subject)

	_, err = r.pool.Exec(ctx, `
		INSERT INTO travelers (
			id, subject_iss, subject_sub, tenant_id, email, first_name, last_name, photo_url, created_at, updated_at
		) VALUES ($1, $2, $3, $4, lower($5), $6, $7, $8, $9, $10)
	`,
		id, iss, sub, t.TenantID, t.Email, t.FirstName, t.LastName, t.PhotoURL,
		t.CreatedAt.UTC(), t.UpdatedAt.UTC(),
	)
	return mapWriteError(err)
}

func (r *Repo) Update(ctx context.Context, t travelerrepo.Traveler) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	id, err := uuid.Parse(string(t.ID))
	if err != nil {
		return fmt.Errorf("invalid traveler id: %w", err)
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var existing *string
		err := tx.QueryRow(ctx, `SELECT subject_sub FROM travelers WHERE id = $1 FOR UPDATE`, id).Scan(&existing)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return travelerrepo.ErrNotFound
			}
			return err
		}
		// A bound subject is immutable; an unbound one may be bound once.
		if existing != nil && (t.Subject == nil || *existing != string(*t.Subject)) {
			return travelerrepo.ErrSubjectAlreadyBound
		}
		iss, sub := r.subjectArgs(t.Subject)

		_, err = tx.Exec(ctx, `
			UPDATE travelers
			SET subject_iss = $2,
			    subject_sub = $3,
			    email = lower($4),
			    first_name = $5,
			    last_name = $6,
			    photo_url = $7,
			    updated_at = $8
			WHERE id = $1
		`,
			id, iss, sub, t.Email, t.FirstName, t.LastName, t.PhotoURL, t.UpdatedAt.UTC(),
		)
		return mapWriteError(err)
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.TravelerID) (travelerrepo.Traveler, error) {
	if r.pool == nil {
		return travelerrepo.Traveler{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(id))
	if err != nil {
		return travelerrepo.Traveler{}, travelerrepo.ErrNotFound
	}
	return scanTraveler(r.pool.QueryRow(ctx, `SELECT `+travelerColumns+` FROM travelers WHERE id = $1`, uid))
}

func (r *Repo) GetBySubject(ctx context.Context, subject domain.SubjectID) (travelerrepo.Traveler, error) {
	if r.pool == nil {
		return travelerrepo.Traveler{}, errors.New("nil postgres pool")
	}
	return scanTraveler(r.pool.QueryRow(ctx,
		`SELECT `+travelerColumns+` FROM travelers WHERE subject_iss = $1 AND subject_sub = $2`,
		r.issuer, string(subject),
	))
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (travelerrepo.Traveler, error) {
	if r.pool == nil {
		return travelerrepo.Traveler{}, errors.New("nil postgres pool")
	}
	return scanTraveler(r.pool.QueryRow(ctx,
		`SELECT `+travelerColumns+` FROM travelers WHERE lower(email) = $1`,
		domain.NormalizeEmail(email),
	))
}

func (r *Repo) subjectArgs(s *domain.SubjectID) (*string, *string) {
	if s == nil {
		return nil, nil
	}
	iss := r.issuer
	sub := string(*s)
	return &iss, &sub
}

func mapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
		switch pe.ConstraintName {
		case "travelers_subject_unique":
			return travelerrepo.ErrSubjectAlreadyBound
		case "travelers_email_unique":
			return travelerrepo.ErrEmailAlreadyInUse
		case "travelers_pkey":
			return travelerrepo.ErrAlreadyExists
		}
	}
	return err
}

func scanTraveler(row pgx.Row) (travelerrepo.Traveler, error) {
	var (
		t   travelerrepo.Traveler
		id  uuid.UUID
		sub *string
	)
	err := row.Scan(&id, &sub, &t.TenantID, &t.Email, &t.FirstName, &t.LastName, &t.PhotoURL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return travelerrepo.Traveler{}, travelerrepo.ErrNotFound
		}
		return travelerrepo.Traveler{}, err
	}
	t.ID = domain.TravelerID(id.String())
	if sub != nil {
		s := domain.SubjectID(*sub)
		t.Subject = &s
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}
