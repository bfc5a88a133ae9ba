package postgres

import (
	"errors"
	"testing"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapTripInsertError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "join code collision",
			err:  &pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintJoinCode},
			want: domainErrors.ErrDuplicateJoinCode,
		},
		{
			name: "same checkout twice",
			err:  &pgconn.PgError{Code: uniqueViolation, ConstraintName: constraintCorrelationKey},
			want: domainErrors.ErrDuplicateTrip,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapTripInsertError(tt.err), tt.want)
		})
	}
}

func TestMapTripInsertError_Other(t *testing.T) {
	cause := &pgconn.PgError{Code: "23514", ConstraintName: "trips_end_after_start"}
	err := mapTripInsertError(cause)

	assert.NotErrorIs(t, err, domainErrors.ErrDuplicateJoinCode)
	assert.NotErrorIs(t, err, domainErrors.ErrDuplicateTrip)
	var pgErr *pgconn.PgError
	assert.True(t, errors.As(err, &pgErr))
	assert.Contains(t, err.Error(), "insert trip")
}
