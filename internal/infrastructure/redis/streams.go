package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	TripEventStream = "trips:events"
	DLQStream       = "trips:dlq"
)

// Event is an outbox entry as carried on a stream.
type Event struct {
	MessageID   string
	EventID     uuid.UUID
	EventType   string
	AggregateID uuid.UUID
	Payload     map[string]any
}

// String reads a payload field, returning "" when it is missing or not a string.
func (e Event) String(key string) string {
	s, _ := e.Payload[key].(string)
	return s
}

type StreamProducer struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewStreamProducer(client redis.Cmdable) *StreamProducer {
	return &StreamProducer{client: client, now: time.Now}
}

// Publish appends an outbox entry to the trip event stream.
func (p *StreamProducer) Publish(ctx context.Context, entry *outbox.Entry) error {
	values, err := EncodeEntry(entry, p.now())
	if err != nil {
		return err
	}
	if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: TripEventStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", entry.EventType, err)
	}
	return nil
}

// PublishToDLQ parks a message that could not be handled.
func (p *StreamProducer) PublishToDLQ(ctx context.Context, msg redis.XMessage, reason string) error {
	values := make(map[string]any, len(msg.Values)+3)
	for k, v := range msg.Values {
		values[k] = v
	}
	values["original_id"] = msg.ID
	values["reason"] = reason
	values["failed_at"] = p.now().Unix()

	if err := p.client.XAdd(ctx, &redis.XAddArgs{Stream: DLQStream, Values: values}).Err(); err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}
	return nil
}

// EncodeEntry flattens an outbox entry into stream fields.
func EncodeEntry(entry *outbox.Entry, now time.Time) (map[string]any, error) {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return map[string]any{
		"event_id":     entry.ID.String(),
		"event_type":   entry.EventType,
		"aggregate_id": entry.AggregateID.String(),
		"payload":      string(payload),
		"timestamp":    now.Unix(),
	}, nil
}

// DecodeEvent parses stream fields written by EncodeEntry.
func DecodeEvent(msg redis.XMessage) (Event, error) {
	field := func(name string) (string, error) {
		v, ok := msg.Values[name].(string)
		if !ok || v == "" {
			return "", fmt.Errorf("message %s: missing %s", msg.ID, name)
		}
		return v, nil
	}

	ev := Event{MessageID: msg.ID}
	var errs []error

	if v, err := field("event_id"); err != nil {
		errs = append(errs, err)
	} else if ev.EventID, err = uuid.Parse(v); err != nil {
		errs = append(errs, fmt.Errorf("message %s: event_id: %w", msg.ID, err))
	}
	if v, err := field("aggregate_id"); err != nil {
		errs = append(errs, err)
	} else if ev.AggregateID, err = uuid.Parse(v); err != nil {
		errs = append(errs, fmt.Errorf("message %s: aggregate_id: %w", msg.ID, err))
	}
	if v, err := field("event_type"); err != nil {
		errs = append(errs, err)
	} else {
		ev.EventType = v
	}
	if v, err := field("payload"); err != nil {
		errs = append(errs, err)
	} else if err := json.Unmarshal([]byte(v), &ev.Payload); err != nil {
		errs = append(errs, fmt.Errorf("message %s: payload: %w", msg.ID, err))
	}

	return ev, errors.Join(errs...)
}

type StreamConsumer struct {
	client        redis.Cmdable
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client redis.Cmdable,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) Stream() string { return c.stream }

func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Read returns new messages for this consumer, or nil after the block
// duration passes with nothing to read.
func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var messages []redis.XMessage
	for _, s := range streams {
		messages = append(messages, s.Messages...)
	}
	return messages, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// ClaimStale takes over messages another consumer left pending for minIdle.
func (c *StreamConsumer) ClaimStale(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error) {
	messages, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.batchSize,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}
	return messages, nil
}
