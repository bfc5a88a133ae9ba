package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StagingRepository is the authoritative intent tier: one row per actor in
// pending_trip_intents, replaced on every checkout.
type StagingRepository struct {
	pool *pgxpool.Pool
}

func NewStagingRepository(pool *pgxpool.Pool) *StagingRepository {
	return &StagingRepository{pool: pool}
}

func (r *StagingRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *StagingRepository) Name() intent.Tier { return intent.TierStaging }

func (r *StagingRepository) Save(ctx context.Context, in *intent.Intent) error {
	draft, err := json.Marshal(in.Draft)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	_, err = r.db(ctx).Exec(ctx,
		`INSERT INTO pending_trip_intents (actor_id, intent_id, draft, created_at, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (actor_id) DO UPDATE SET
		   intent_id = EXCLUDED.intent_id,
		   draft = EXCLUDED.draft,
		   created_at = EXCLUDED.created_at,
		   expires_at = EXCLUDED.expires_at,
		   updated_at = NOW()`,
		in.ActorID, in.ID, draft, in.CreatedAt, in.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("upsert staging intent: %w", err)
	}
	return nil
}

func (r *StagingRepository) Load(ctx context.Context, actorID string) (*intent.Intent, error) {
	in := &intent.Intent{}
	var draft []byte
	err := r.db(ctx).QueryRow(ctx,
		`SELECT actor_id, intent_id, draft, created_at, expires_at
		 FROM pending_trip_intents WHERE actor_id = $1`, actorID,
	).Scan(&in.ActorID, &in.ID, &draft, &in.CreatedAt, &in.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrIntentNotFound
		}
		return nil, fmt.Errorf("load staging intent: %w", err)
	}
	if err := json.Unmarshal(draft, &in.Draft); err != nil {
		return nil, fmt.Errorf("unmarshal staging draft: %w", err)
	}
	return in, nil
}

func (r *StagingRepository) Delete(ctx context.Context, actorID string) error {
	if _, err := r.db(ctx).Exec(ctx, `DELETE FROM pending_trip_intents WHERE actor_id = $1`, actorID); err != nil {
		return fmt.Errorf("delete staging intent: %w", err)
	}
	return nil
}

// DeleteExpired removes intents that expired before now.
func (r *StagingRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx, `DELETE FROM pending_trip_intents WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired staging intents: %w", err)
	}
	return tag.RowsAffected(), nil
}
