package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("insert trip: %w", &pgconn.PgError{Code: UniqueViolationCode, ConstraintName: "trips_pkey"})
	assert.True(t, IsUniqueViolation(wrapped, "trips_pkey"))
	assert.False(t, IsUniqueViolation(wrapped, "crews_handle_unique"), "constraint name must match")
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: ForeignKeyViolationCode, ConstraintName: "trips_pkey"}, "trips_pkey"))
	assert.False(t, IsUniqueViolation(errors.New("boom"), "trips_pkey"))
}
