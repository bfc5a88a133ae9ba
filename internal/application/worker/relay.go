// Package worker holds the background jobs that run next to the API: the
// outbox relay, owner membership repair and the expired intent sweeper.
package worker

import (
	"context"
	"fmt"

	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// TransactionManager runs fn in one database transaction.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher delivers an outbox entry to the event stream.
type Publisher interface {
	Publish(ctx context.Context, entry *outbox.Entry) error
}

// OutboxRelay moves pending outbox rows onto the event stream. Rows are
// locked for the duration of a batch, so several relays can run at once.
type OutboxRelay struct {
	txManager TransactionManager
	outbox    outbox.Repository
	publisher Publisher
	batchSize int
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewOutboxRelay(
	txManager TransactionManager,
	repo outbox.Repository,
	publisher Publisher,
	batchSize int,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *OutboxRelay {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &OutboxRelay{
		txManager: txManager,
		outbox:    repo,
		publisher: publisher,
		batchSize: batchSize,
		logger:    observability.Component(logger, "outbox_relay"),
		metrics:   metrics,
	}
}

// RunOnce relays one batch and returns how many entries were published.
// A failed publish is counted against the entry and does not stop the batch.
func (r *OutboxRelay) RunOnce(ctx context.Context) (int, error) {
	published := 0
	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.outbox.GetPending(txCtx, r.batchSize)
		if err != nil {
			return fmt.Errorf("get pending outbox entries: %w", err)
		}
		for _, entry := range entries {
			if err := r.publisher.Publish(ctx, entry); err != nil {
				r.logger.Error().Err(err).
					Str("outbox_id", entry.ID.String()).
					Str("event_type", entry.EventType).
					Int("retry_count", entry.RetryCount+1).
					Msg("failed to publish outbox event")
				if err := r.outbox.MarkFailed(txCtx, entry.ID); err != nil {
					return err
				}
				r.count("failed")
				continue
			}
			if err := r.outbox.MarkPublished(txCtx, entry.ID); err != nil {
				return err
			}
			published++
			r.count("published")
		}
		return nil
	})
	return published, err
}

func (r *OutboxRelay) count(status string) {
	if r.metrics != nil {
		r.metrics.WorkerMessagesProcessed.WithLabelValues("outbox", status).Inc()
	}
}
