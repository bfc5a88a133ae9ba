package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Tiers writes intents to every configured tier and reads them back in
// descending order of durability.
type Tiers struct {
	tiers   []Tier
	now     Clock
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewTiers composes tiers in priority order, most authoritative first.
func NewTiers(logger zerolog.Logger, metrics *observability.Metrics, now Clock, tiers ...Tier) *Tiers {
	if now == nil {
		now = time.Now
	}
	return &Tiers{
		tiers:   tiers,
		now:     now,
		logger:  observability.Component(logger, "tiers"),
		metrics: metrics,
	}
}

// Save writes the intent everywhere it can and returns how many tiers took it.
// A tier failure never stops the others.
func (t *Tiers) Save(ctx context.Context, in *intent.Intent) int {
	written := 0
	for _, tier := range t.tiers {
		cp := *in
		if err := tier.Save(ctx, &cp); err != nil {
			t.record(tier, "save", "error")
			t.logger.Warn().Err(err).
				Str("tier", string(tier.Name())).
				Str("actor_id", in.ActorID).
				Str("intent_id", in.ID.String()).
				Msg("intent tier write failed")
			continue
		}
		t.record(tier, "save", "ok")
		written++
	}
	return written
}

// LoadBestAvailable returns the intent from the highest priority tier that has
// a live record owned by actorID.
func (t *Tiers) LoadBestAvailable(ctx context.Context, actorID string) (*intent.Intent, error) {
	now := t.now()
	for _, tier := range t.tiers {
		in, err := tier.Load(ctx, actorID)
		if err != nil {
			if errors.Is(err, domainErrors.ErrIntentNotFound) {
				t.record(tier, "load", "miss")
				continue
			}
			t.record(tier, "load", "error")
			t.logger.Warn().Err(err).
				Str("tier", string(tier.Name())).
				Str("actor_id", actorID).
				Msg("intent tier read failed")
			continue
		}
		if in == nil {
			t.record(tier, "load", "miss")
			continue
		}
		if in.ActorID != actorID {
			t.record(tier, "load", "foreign")
			t.logger.Warn().
				Str("tier", string(tier.Name())).
				Str("actor_id", actorID).
				Str("owner_id", in.ActorID).
				Msg("ignoring intent owned by another actor")
			continue
		}
		if in.Expired(now) {
			t.record(tier, "load", "expired")
			continue
		}

		t.record(tier, "load", "hit")
		in.Tier = tier.Name()
		return in, nil
	}
	return nil, domainErrors.ErrIntentNotFound
}

// Purge deletes the actor's intent from every tier. The joined error is for
// logging only; a partial purge is not a failure of the caller.
func (t *Tiers) Purge(ctx context.Context, actorID string) error {
	var errs []error
	for _, tier := range t.tiers {
		if err := tier.Delete(ctx, actorID); err != nil {
			t.record(tier, "delete", "error")
			errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
			continue
		}
		t.record(tier, "delete", "ok")
	}
	err := errors.Join(errs...)
	if err != nil {
		t.logger.Warn().Err(err).Str("actor_id", actorID).Msg("intent purge incomplete")
	}
	return err
}

func (t *Tiers) record(tier Tier, op, result string) {
	if t.metrics != nil {
		t.metrics.TierOperations.WithLabelValues(string(tier.Name()), op, result).Inc()
	}
}
