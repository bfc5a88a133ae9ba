package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const outboxColumns = `id, aggregate_type, aggregate_id, event_type, payload, status, retry_count, max_retries, created_at, published_at`

// OutboxRepository stores trip events until the relay hands them to the stream.
type OutboxRepository struct {
	pool *pgxpool.Pool
}

func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{pool: pool}
}

func (r *OutboxRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// Insert joins the transaction in ctx, so the event commits with the trip.
func (r *OutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", entry.EventType, err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO outbox (`+outboxColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)`,
		entry.ID, entry.AggregateType, entry.AggregateID, entry.EventType, payload,
		entry.Status, entry.RetryCount, entry.MaxRetries, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// GetPending locks up to limit pending rows, oldest first. Concurrent relays
// skip each other's rows until commit.
func (r *OutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+outboxColumns+` FROM outbox
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`, outbox.StatusPending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get pending outbox entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*outbox.Entry, error) {
		return scanOutboxEntry(row)
	})
	if err != nil {
		return nil, fmt.Errorf("collect outbox entries: %w", err)
	}
	return entries, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET status = $2, published_at = NOW() WHERE id = $1`,
		id, outbox.StatusPublished,
	)
	if err != nil {
		return fmt.Errorf("mark outbox entry %s published: %w", id, err)
	}
	return nil
}

// MarkFailed counts a failed relay; the row is parked once it reaches
// max_retries and the relay stops picking it up.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	_, err := r.db(ctx).Exec(ctx,
		`UPDATE outbox SET retry_count = retry_count + 1,
		        status = CASE WHEN retry_count + 1 >= max_retries THEN $2 ELSE status END
		 WHERE id = $1`,
		id, outbox.StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("mark outbox entry %s failed: %w", id, err)
	}
	return nil
}

// DeletePublishedBefore trims delivered events older than before. Failed rows
// are kept for inspection.
func (r *OutboxRepository) DeletePublishedBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM outbox WHERE status = $1 AND published_at < $2`,
		outbox.StatusPublished, before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete published outbox entries: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOutboxEntry(row pgx.Row) (*outbox.Entry, error) {
	var (
		e       outbox.Entry
		payload []byte
		status  string
	)
	if err := row.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &payload,
		&status, &e.RetryCount, &e.MaxRetries, &e.CreatedAt, &e.PublishedAt); err != nil {
		return nil, err
	}
	e.Status = outbox.Status(status)
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal outbox payload %s: %w", e.ID, err)
		}
	}
	return &e, nil
}
