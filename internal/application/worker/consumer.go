package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/tripcheckout/internal/infrastructure/redis"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Stream is a consumer group reader.
type Stream interface {
	Stream() string
	Read(ctx context.Context) ([]redis.XMessage, error)
	Ack(ctx context.Context, messageID string) error
	ClaimStale(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error)
}

// DeadLetters parks messages that will never be handled.
type DeadLetters interface {
	PublishToDLQ(ctx context.Context, msg redis.XMessage, reason string) error
}

// EventConsumer feeds trip.created events to the membership repair. A message
// is acked once it is handled or parked; transient failures stay pending and
// are picked up again by ClaimStale.
type EventConsumer struct {
	stream  Stream
	dlq     DeadLetters
	repair  *MembershipRepair
	minIdle time.Duration
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewEventConsumer(
	stream Stream,
	dlq DeadLetters,
	repair *MembershipRepair,
	minIdle time.Duration,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *EventConsumer {
	if minIdle <= 0 {
		minIdle = time.Minute
	}
	return &EventConsumer{
		stream:  stream,
		dlq:     dlq,
		repair:  repair,
		minIdle: minIdle,
		logger:  observability.Component(logger, "event_consumer"),
		metrics: metrics,
	}
}

// Run reads until ctx is done.
func (c *EventConsumer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		messages, err := c.stream.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error().Err(err).Msg("Failed to read from stream")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		c.HandleBatch(ctx, messages)
	}
}

// Reclaim retries messages left pending by a crashed or failing consumer.
func (c *EventConsumer) Reclaim(ctx context.Context) error {
	messages, err := c.stream.ClaimStale(ctx, c.minIdle)
	if err != nil {
		return err
	}
	if len(messages) > 0 {
		c.logger.Info().Int("count", len(messages)).Msg("Reclaimed stale messages")
	}
	c.HandleBatch(ctx, messages)
	return nil
}

func (c *EventConsumer) HandleBatch(ctx context.Context, messages []redis.XMessage) {
	for _, msg := range messages {
		status := c.handle(ctx, msg)
		if c.metrics != nil {
			c.metrics.WorkerMessagesProcessed.WithLabelValues(c.stream.Stream(), status).Inc()
		}
	}
}

func (c *EventConsumer) handle(ctx context.Context, msg redis.XMessage) string {
	log := c.logger.With().Str("message_id", msg.ID).Logger()

	ev, err := infraRedis.DecodeEvent(msg)
	if err != nil {
		return c.park(ctx, msg, err)
	}
	if ev.EventType != outbox.EventTripCreated {
		c.ack(ctx, msg.ID)
		return "skipped"
	}

	created, err := ParseTripCreated(ev.AggregateID.String(), ev.Payload)
	if err != nil {
		return c.park(ctx, msg, err)
	}

	repaired, err := c.repair.Handle(ctx, created)
	switch {
	case errors.Is(err, ErrPermanent):
		return c.park(ctx, msg, err)
	case err != nil:
		log.Warn().Err(err).Str("trip_id", created.TripID.String()).Msg("Membership repair failed, leaving message pending")
		return "retry"
	}

	c.ack(ctx, msg.ID)
	if repaired {
		return "repaired"
	}
	return "success"
}

func (c *EventConsumer) park(ctx context.Context, msg redis.XMessage, cause error) string {
	c.logger.Error().Err(cause).Str("message_id", msg.ID).Msg("Parking message on dead letter stream")
	if err := c.dlq.PublishToDLQ(ctx, msg, cause.Error()); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to park message")
		return "retry"
	}
	c.ack(ctx, msg.ID)
	return "dead_letter"
}

func (c *EventConsumer) ack(ctx context.Context, id string) {
	if err := c.stream.Ack(ctx, id); err != nil {
		c.logger.Error().Err(err).Str("message_id", id).Msg("Failed to ack message")
	}
}
