package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/idempotency"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Column order matches idempotency.Record for pgx.RowToStructByPos.
const idempotencyColumns = `key, response_body, response_status, created_at, expires_at`

// IdempotencyRepository stores replayable POST /checkout responses.
type IdempotencyRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewIdempotencyRepository(pool *pgxpool.Pool) *IdempotencyRepository {
	return &IdempotencyRepository{pool: pool, now: time.Now}
}

func (r *IdempotencyRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*idempotency.Record, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+idempotencyColumns+` FROM idempotency_keys WHERE key = $1 AND expires_at > $2`,
		key, r.now())
	if err != nil {
		return nil, fmt.Errorf("query idempotency key %q: %w", key, err)
	}
	rec, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByPos[idempotency.Record])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan idempotency key %q: %w", key, err)
	}
	return rec, nil
}

// Set keeps whichever response was stored first for a key.
func (r *IdempotencyRepository) Set(ctx context.Context, rec *idempotency.Record) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO idempotency_keys (`+idempotencyColumns+`) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO NOTHING`,
		rec.Key, rec.ResponseBody, rec.ResponseStatus, rec.CreatedAt, rec.ExpiresAt)
	if err != nil {
		return fmt.Errorf("store idempotency key %q: %w", rec.Key, err)
	}
	return nil
}

// Cleanup deletes expired keys and reports how many went.
func (r *IdempotencyRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, r.now())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
