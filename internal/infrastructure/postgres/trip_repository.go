package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation = "23505"

	constraintJoinCode       = "trips_join_code_key"
	constraintCorrelationKey = "trips_correlation_key_key"
)

const tripColumns = `id, title, group_label, description, start_at, end_at, join_code, owner_id, correlation_key, created_at`

// TripRepository implements trip.Repository using PostgreSQL.
type TripRepository struct {
	pool *pgxpool.Pool
}

func NewTripRepository(pool *pgxpool.Pool) *TripRepository {
	return &TripRepository{pool: pool}
}

func (r *TripRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *TripRepository) Create(ctx context.Context, t *trip.Trip) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO trips (`+tripColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.Title, t.GroupLabel, t.Description, t.StartAt, t.EndAt,
		t.JoinCode, t.OwnerID, t.CorrelationKey, t.CreatedAt,
	)
	if err != nil {
		return mapTripInsertError(err)
	}
	return nil
}

// mapTripInsertError tells join code collisions, which are retried with a
// new code, apart from a second insert for the same checkout.
func mapTripInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case constraintJoinCode:
			return domainErrors.ErrDuplicateJoinCode
		case constraintCorrelationKey:
			return domainErrors.ErrDuplicateTrip
		}
	}
	return fmt.Errorf("insert trip: %w", err)
}

func (r *TripRepository) GetByID(ctx context.Context, id uuid.UUID) (*trip.Trip, error) {
	return r.scanTrip(r.db(ctx).QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE id = $1`, id))
}

func (r *TripRepository) GetByCorrelationKey(ctx context.Context, key string) (*trip.Trip, error) {
	return r.scanTrip(r.db(ctx).QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE correlation_key = $1`, key))
}

func (r *TripRepository) GetByJoinCode(ctx context.Context, code string) (*trip.Trip, error) {
	return r.scanTrip(r.db(ctx).QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE join_code = $1`, trip.NormalizeJoinCode(code)))
}

func (r *TripRepository) scanTrip(row pgx.Row) (*trip.Trip, error) {
	t := &trip.Trip{}
	err := row.Scan(&t.ID, &t.Title, &t.GroupLabel, &t.Description, &t.StartAt, &t.EndAt,
		&t.JoinCode, &t.OwnerID, &t.CorrelationKey, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTripNotFound
		}
		return nil, fmt.Errorf("scan trip: %w", err)
	}
	t.StartAt = t.StartAt.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	if t.EndAt != nil {
		end := t.EndAt.UTC()
		t.EndAt = &end
	}
	return t, nil
}

// MembershipRepository implements trip.MembershipRepository using PostgreSQL.
type MembershipRepository struct {
	pool *pgxpool.Pool
}

func NewMembershipRepository(pool *pgxpool.Pool) *MembershipRepository {
	return &MembershipRepository{pool: pool}
}

func (r *MembershipRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *MembershipRepository) Add(ctx context.Context, m *trip.Membership) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO trip_memberships (trip_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (trip_id, user_id) DO NOTHING`,
		m.TripID, m.UserID, string(m.Role), m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (r *MembershipRepository) Get(ctx context.Context, tripID uuid.UUID, userID string) (*trip.Membership, error) {
	m := &trip.Membership{}
	var role string
	err := r.db(ctx).QueryRow(ctx,
		`SELECT trip_id, user_id, role, joined_at FROM trip_memberships
		 WHERE trip_id = $1 AND user_id = $2`, tripID, userID,
	).Scan(&m.TripID, &m.UserID, &role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTripNotFound
		}
		return nil, fmt.Errorf("get membership: %w", err)
	}
	m.Role = trip.Role(role)
	return m, nil
}
