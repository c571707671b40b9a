package crewrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/tripwell/crew-planner-api/internal/adapters/postgres"
	"github.com/tripwell/crew-planner-api/internal/domain"
	"github.com/tripwell/crew-planner-api/internal/ports/out/crewrepo"
)

const (
	crewColumns     = `c.id, c.name, c.description, c.handle, c.join_code, c.created_by, c.created_at, c.updated_at`
	joinCodeColumns = `code, crew_id, is_active, expires_at, created_at, deactivated_at`
)

// Repo is a Postgres implementation of crewrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Bootstrap(ctx context.Context, b crewrepo.Bootstrap) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(b.Crew.ID))
	if err != nil {
		return fmt.Errorf("invalid crew id: %w", err)
	}
	founderUUID, err := uuid.Parse(string(b.Crew.CreatedBy))
	if err != nil {
		return fmt.Errorf("invalid founder id: %w", err)
	}

	// The four inserts commit together or not at all.
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO crews (id, name, description, handle, join_code, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			crewUUID,
			b.Crew.Name,
			b.Crew.Description,
			b.Crew.Handle,
			b.Crew.LegacyJoinCode,
			founderUUID,
			b.Crew.CreatedAt.UTC(),
			b.Crew.UpdatedAt.UTC(),
		); err != nil {
			return mapWriteError(err)
		}

		// A new code must not shadow a legacy crew code either.
		var legacyTaken bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM crews WHERE join_code = $1)`, b.JoinCode.Code).Scan(&legacyTaken); err != nil {
			return err
		}
		if legacyTaken {
			return crewrepo.ErrJoinCodeTaken
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO crew_memberships (crew_id, traveler_id, created_at) VALUES ($1, $2, $3)
		`, crewUUID, founderUUID, b.Membership.CreatedAt.UTC()); err != nil {
			return mapWriteError(err)
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO crew_roles (crew_id, traveler_id, role, created_at) VALUES ($1, $2, $3, $4)
		`, crewUUID, founderUUID, string(b.Role.Role), b.Role.CreatedAt.UTC()); err != nil {
			return mapWriteError(err)
		}

		if err := insertJoinCode(ctx, tx, crewUUID, b.JoinCode); err != nil {
			return mapWriteError(err)
		}
		return nil
	})
}

func (r *Repo) GetByID(ctx context.Context, id domain.CrewID) (crewrepo.Crew, error) {
	if r.pool == nil {
		return crewrepo.Crew{}, errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(id))
	if err != nil {
		return crewrepo.Crew{}, crewrepo.ErrNotFound
	}
	return scanCrew(r.pool.QueryRow(ctx, `SELECT `+crewColumns+` FROM crews c WHERE c.id = $1`, crewUUID))
}

func (r *Repo) GetByHandle(ctx context.Context, handle string) (crewrepo.Crew, error) {
	if r.pool == nil {
		return crewrepo.Crew{}, errors.New("nil postgres pool")
	}
	return scanCrew(r.pool.QueryRow(ctx, `SELECT `+crewColumns+` FROM crews c WHERE c.handle = $1`, handle))
}

func (r *Repo) GetByLegacyJoinCode(ctx context.Context, code string) (crewrepo.Crew, error) {
	if r.pool == nil {
		return crewrepo.Crew{}, errors.New("nil postgres pool")
	}
	return scanCrew(r.pool.QueryRow(ctx, `SELECT `+crewColumns+` FROM crews c WHERE c.join_code = $1`, code))
}

func (r *Repo) HandleExists(ctx context.Context, handle string) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM crews WHERE handle = $1)`, handle).Scan(&ok)
	return ok, err
}

func (r *Repo) ListForTraveler(ctx context.Context, travelerID domain.TravelerID) ([]crewrepo.Crew, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	travelerUUID, err := uuid.Parse(string(travelerID))
	if err != nil {
		return []crewrepo.Crew{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+crewColumns+`
		FROM crews c
		JOIN crew_memberships m ON m.crew_id = c.id
		WHERE m.traveler_id = $1
		ORDER BY m.created_at DESC, c.id ASC
	`, travelerUUID)
	if err != nil {
		return nil, err
	}
	return collectCrews(rows)
}

func (r *Repo) ListWithLegacyJoinCode(ctx context.Context) ([]crewrepo.Crew, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+crewColumns+`
		FROM crews c
		WHERE c.join_code IS NOT NULL
		ORDER BY c.id ASC
	`)
	if err != nil {
		return nil, err
	}
	return collectCrews(rows)
}

func (r *Repo) AddMember(ctx context.Context, m crewrepo.Membership) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	crewUUID, travelerUUID, err := parsePair(m.CrewID, m.TravelerID)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO crew_memberships (crew_id, traveler_id, created_at) VALUES ($1, $2, $3)
	`, crewUUID, travelerUUID, m.CreatedAt.UTC())
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.ForeignKeyViolationCode {
			return crewrepo.ErrNotFound
		}
		return mapWriteError(err)
	}
	return nil
}

func (r *Repo) GetMembership(ctx context.Context, crewID domain.CrewID, travelerID domain.TravelerID) (crewrepo.Membership, error) {
	if r.pool == nil {
		return crewrepo.Membership{}, errors.New("nil postgres pool")
	}
	crewUUID, travelerUUID, err := parsePair(crewID, travelerID)
	if err != nil {
		return crewrepo.Membership{}, crewrepo.ErrNotFound
	}
	m := crewrepo.Membership{CrewID: crewID, TravelerID: travelerID}
	err = r.pool.QueryRow(ctx, `
		SELECT created_at FROM crew_memberships WHERE crew_id = $1 AND traveler_id = $2
	`, crewUUID, travelerUUID).Scan(&m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crewrepo.Membership{}, crewrepo.ErrNotFound
		}
		return crewrepo.Membership{}, err
	}
	m.CreatedAt = m.CreatedAt.UTC()
	return m, nil
}

func (r *Repo) ListMembers(ctx context.Context, crewID domain.CrewID) ([]crewrepo.Membership, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(crewID))
	if err != nil {
		return []crewrepo.Membership{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT traveler_id, created_at
		FROM crew_memberships
		WHERE crew_id = $1
		ORDER BY created_at ASC, traveler_id ASC
	`, crewUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]crewrepo.Membership, 0)
	for rows.Next() {
		var (
			travelerUUID uuid.UUID
			m            = crewrepo.Membership{CrewID: crewID}
		)
		if err := rows.Scan(&travelerUUID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.TravelerID = domain.TravelerID(travelerUUID.String())
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repo) CountMembers(ctx context.Context, crewID domain.CrewID) (int, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(crewID))
	if err != nil {
		return 0, nil
	}
	var n int
	err = r.pool.QueryRow(ctx, `SELECT count(*) FROM crew_memberships WHERE crew_id = $1`, crewUUID).Scan(&n)
	return n, err
}

func (r *Repo) ListRoles(ctx context.Context, crewID domain.CrewID) ([]crewrepo.Role, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(crewID))
	if err != nil {
		return []crewrepo.Role{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT traveler_id, role, created_at
		FROM crew_roles
		WHERE crew_id = $1
		ORDER BY created_at ASC, traveler_id ASC
	`, crewUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]crewrepo.Role, 0)
	for rows.Next() {
		var (
			travelerUUID uuid.UUID
			role         string
			rr           = crewrepo.Role{CrewID: crewID}
		)
		if err := rows.Scan(&travelerUUID, &role, &rr.CreatedAt); err != nil {
			return nil, err
		}
		rr.TravelerID = domain.TravelerID(travelerUUID.String())
		rr.Role = domain.Role(role)
		rr.CreatedAt = rr.CreatedAt.UTC()
		out = append(out, rr)
	}
	return out, rows.Err()
}

func (r *Repo) HasRole(ctx context.Context, crewID domain.CrewID, travelerID domain.TravelerID, role domain.Role) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	crewUUID, travelerUUID, err := parsePair(crewID, travelerID)
	if err != nil {
		return false, nil
	}
	var ok bool
	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM crew_roles WHERE crew_id = $1 AND traveler_id = $2 AND role = $3)
	`, crewUUID, travelerUUID, string(role)).Scan(&ok)
	return ok, err
}

func (r *Repo) CreateJoinCode(ctx context.Context, jc crewrepo.JoinCode) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(jc.CrewID))
	if err != nil {
		return crewrepo.ErrNotFound
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var legacyOwner uuid.UUID
		err := tx.QueryRow(ctx, `SELECT id FROM crews WHERE join_code = $1`, jc.Code).Scan(&legacyOwner)
		switch {
		case err == nil && legacyOwner != crewUUID:
			return crewrepo.ErrJoinCodeTaken
		case err != nil && !errors.Is(err, pgx.ErrNoRows):
			return err
		}
		if err := insertJoinCode(ctx, tx, crewUUID, jc); err != nil {
			if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.ForeignKeyViolationCode {
				return crewrepo.ErrNotFound
			}
			return mapWriteError(err)
		}
		return nil
	})
}

func (r *Repo) EnsureJoinCode(ctx context.Context, jc crewrepo.JoinCode) (crewrepo.JoinCode, error) {
	if r.pool == nil {
		return crewrepo.JoinCode{}, errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(jc.CrewID))
	if err != nil {
		return crewrepo.JoinCode{}, crewrepo.ErrNotFound
	}
	// Insert-if-absent: an existing row (active or not) is left untouched.
	_, err = r.pool.Exec(ctx, `
		INSERT INTO join_codes (code, crew_id, is_active, expires_at, created_at, deactivated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING
	`, jc.Code, crewUUID, jc.IsActive, utcPtr(jc.ExpiresAt), jc.CreatedAt.UTC(), utcPtr(jc.DeactivatedAt))
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.ForeignKeyViolationCode {
			return crewrepo.JoinCode{}, crewrepo.ErrNotFound
		}
		return crewrepo.JoinCode{}, err
	}
	return r.GetJoinCode(ctx, jc.Code)
}

func (r *Repo) GetJoinCode(ctx context.Context, code string) (crewrepo.JoinCode, error) {
	if r.pool == nil {
		return crewrepo.JoinCode{}, errors.New("nil postgres pool")
	}
	return scanJoinCode(r.pool.QueryRow(ctx, `SELECT `+joinCodeColumns+` FROM join_codes WHERE code = $1`, code))
}

func (r *Repo) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	if r.pool == nil {
		return false, errors.New("nil postgres pool")
	}
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM join_codes WHERE code = $1)
		    OR EXISTS (SELECT 1 FROM crews WHERE join_code = $1)
	`, code).Scan(&ok)
	return ok, err
}

func (r *Repo) ListJoinCodes(ctx context.Context, crewID domain.CrewID) ([]crewrepo.JoinCode, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(crewID))
	if err != nil {
		return []crewrepo.JoinCode{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+joinCodeColumns+`
		FROM join_codes
		WHERE crew_id = $1
		ORDER BY created_at DESC, code ASC
	`, crewUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]crewrepo.JoinCode, 0)
	for rows.Next() {
		jc, err := scanJoinCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, jc)
	}
	return out, rows.Err()
}

func (r *Repo) DeactivateJoinCode(ctx context.Context, code string, at time.Time) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE join_codes
		SET is_active = FALSE,
		    deactivated_at = COALESCE(deactivated_at, $2)
		WHERE code = $1
	`, code, at.UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return crewrepo.ErrNotFound
	}
	return nil
}

func insertJoinCode(ctx context.Context, tx pgx.Tx, crewUUID uuid.UUID, jc crewrepo.JoinCode) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO join_codes (code, crew_id, is_active, expires_at, created_at, deactivated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, jc.Code, crewUUID, jc.IsActive, utcPtr(jc.ExpiresAt), jc.CreatedAt.UTC(), utcPtr(jc.DeactivatedAt))
	return err
}

func mapWriteError(err error) error {
	pe, ok := postgres.AsPgError(err)
	if !ok || pe.Code != postgres.UniqueViolationCode {
		return err
	}
	switch pe.ConstraintName {
	case "crews_pkey":
		return crewrepo.ErrAlreadyExists
	case "crews_handle_unique":
		return crewrepo.ErrHandleTaken
	case "crews_join_code_unique", "join_codes_pkey":
		return crewrepo.ErrJoinCodeTaken
	case "crew_memberships_pkey":
		return crewrepo.ErrAlreadyMember
	default:
		return err
	}
}

func parsePair(crewID domain.CrewID, travelerID domain.TravelerID) (uuid.UUID, uuid.UUID, error) {
	crewUUID, err := uuid.Parse(string(crewID))
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid crew id: %w", err)
	}
	travelerUUID, err := uuid.Parse(string(travelerID))
	if err != nil {
		return uuid.Nil, uuid.Nil, fmt.Errorf("invalid traveler id: %w", err)
	}
	return crewUUID, travelerUUID, nil
}

func collectCrews(rows pgx.Rows) ([]crewrepo.Crew, error) {
	defer rows.Close()
	out := make([]crewrepo.Crew, 0)
	for rows.Next() {
		c, err := scanCrew(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCrew(row pgx.Row) (crewrepo.Crew, error) {
	var (
		c             crewrepo.Crew
		id, createdBy uuid.UUID
	)
	err := row.Scan(&id, &c.Name, &c.Description, &c.Handle, &c.LegacyJoinCode, &createdBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crewrepo.Crew{}, crewrepo.ErrNotFound
		}
		return crewrepo.Crew{}, err
	}
	c.ID = domain.CrewID(id.String())
	c.CreatedBy = domain.TravelerID(createdBy.String())
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

func scanJoinCode(row pgx.Row) (crewrepo.JoinCode, error) {
	var (
		jc     crewrepo.JoinCode
		crewID uuid.UUID
	)
	err := row.Scan(&jc.Code, &crewID, &jc.IsActive, &jc.ExpiresAt, &jc.CreatedAt, &jc.DeactivatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crewrepo.JoinCode{}, crewrepo.ErrNotFound
		}
		return crewrepo.JoinCode{}, err
	}
	jc.CrewID = domain.CrewID(crewID.String())
	jc.CreatedAt = jc.CreatedAt.UTC()
	jc.ExpiresAt = utcPtr(jc.ExpiresAt)
	jc.DeactivatedAt = utcPtr(jc.DeactivatedAt)
	return jc, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
