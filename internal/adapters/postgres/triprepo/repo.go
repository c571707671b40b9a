package triprepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/tripwell/crew-planner-api/internal/adapters/postgres"
	"github.com/tripwell/crew-planner-api/internal/domain"
	"github.com/tripwell/crew-planner-api/internal/ports/out/triprepo"
)

const tripColumns = `id, crew_id, name, destination, purpose, start_date, end_date, season, days_total, date_range, created_by, created_at, updated_at`

// Repo is a Postgres implementation of triprepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, t triprepo.Trip) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	ids, err := parseTripIDs(t)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO trips (
			id,
			crew_id,
			name,
			destination,
			purpose,
			start_date,
			end_date,
			season,
			days_total,
			date_range,
			created_by,
			created_at,
			updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		ids.trip,
		ids.crew,
		t.Name,
		t.Destination,
		string(t.Purpose),
		datePtr(t.StartDate),
		datePtr(t.EndDate),
		t.Season,
		t.DaysTotal,
		t.DateRange,
		ids.creator,
		t.CreatedAt.UTC(),
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, "trips_pkey") {
			return triprepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, t triprepo.Trip) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tripUUID, err := uuid.Parse(string(t.ID))
	if err != nil {
		return triprepo.ErrNotFound
	}

	ct, err := r.pool.Exec(ctx, `
		UPDATE trips
		SET name = $2,
		    destination = $3,
		    purpose = $4,
		    start_date = $5,
		    end_date = $6,
		    season = $7,
		    days_total = $8,
		    date_range = $9,
		    updated_at = $10
		WHERE id = $1
	`,
		tripUUID,
		t.Name,
		t.Destination,
		string(t.Purpose),
		datePtr(t.StartDate),
		datePtr(t.EndDate),
		t.Season,
		t.DaysTotal,
		t.DateRange,
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return triprepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (triprepo.Trip, error) {
	if r.pool == nil {
		return triprepo.Trip{}, errors.New("nil postgres pool")
	}
	tripUUID, err := uuid.Parse(string(id))
	if err != nil {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	t, err := scanTrip(r.pool.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, tripUUID))
	if errors.Is(err, pgx.ErrNoRows) {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	return t, err
}

func (r *Repo) ListByCrew(ctx context.Context, crewID domain.CrewID) ([]triprepo.Trip, error) {
	if r.pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(crewID))
	if err != nil {
		return []triprepo.Trip{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE crew_id = $1
		ORDER BY created_at DESC, id ASC
	`, crewUUID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]triprepo.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) CountByCrew(ctx context.Context, crewID domain.CrewID) (int, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	crewUUID, err := uuid.Parse(string(crewID))
	if err != nil {
		return 0, nil
	}
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM trips WHERE crew_id = $1`, crewUUID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

type tripIDs struct {
	trip, crew, creator uuid.UUID
}

func parseTripIDs(t triprepo.Trip) (tripIDs, error) {
	var (
		ids tripIDs
		err error
	)
	if ids.trip, err = uuid.Parse(string(t.ID)); err != nil {
		return tripIDs{}, fmt.Errorf("invalid trip id: %w", err)
	}
	if ids.crew, err = uuid.Parse(string(t.CrewID)); err != nil {
		return tripIDs{}, fmt.Errorf("invalid crew id: %w", err)
	}
	if ids.creator, err = uuid.Parse(string(t.CreatedBy)); err != nil {
		return tripIDs{}, fmt.Errorf("invalid creator traveler id: %w", err)
	}
	return ids, nil
}

func scanTrip(row pgx.Row) (triprepo.Trip, error) {
	var (
		t                 triprepo.Trip
		id, crew, creator uuid.UUID
		purpose           string
		startDate         pgtype.Date
		endDate           pgtype.Date
	)
	if err := row.Scan(
		&id,
		&crew,
		&t.Name,
		&t.Destination,
		&purpose,
		&startDate,
		&endDate,
		&t.Season,
		&t.DaysTotal,
		&t.DateRange,
		&creator,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return triprepo.Trip{}, err
	}
	t.ID = domain.TripID(id.String())
	t.CrewID = domain.CrewID(crew.String())
	t.CreatedBy = domain.TravelerID(creator.String())
	t.Purpose = domain.TripPurpose(purpose)
	t.StartDate = dateToTimePtr(startDate)
	t.EndDate = dateToTimePtr(endDate)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func datePtr(t *time.Time) pgtype.Date {
	var d pgtype.Date
	if t == nil {
		d.Valid = false
		return d
	}
	tt := t.UTC()
	d.Time = time.Date(tt.Year(), tt.Month(), tt.Day(), 0, 0, 0, 0, time.UTC)
	d.Valid = true
	return d
}

func dateToTimePtr(d pgtype.Date) *time.Time {
	if !d.Valid {
		return nil
	}
	t := time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
	return &t
}
