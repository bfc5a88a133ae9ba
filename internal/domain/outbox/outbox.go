// Package outbox holds events committed in the same transaction as the rows
// they describe, waiting to be relayed to the event stream.
package outbox

import (
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/google/uuid"
)

const (
	AggregateTrip    = "trip"
	EventTripCreated = "trip.created"
)

// Payload fields of a trip.created event.
const (
	FieldTripID         = "trip_id"
	FieldOwnerID        = "owner_id"
	FieldJoinCode       = "join_code"
	FieldCorrelationKey = "correlation_key"
	FieldTitle          = "title"
)

// DefaultMaxRetries bounds publish attempts before an entry is parked.
const DefaultMaxRetries = 5

type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     time.Now(),
	}
}

// NewTripCreated announces t. The owner id lets consumers repair a missing
// owner membership without another lookup.
func NewTripCreated(t *trip.Trip, now time.Time) *Entry {
	e := NewEntry(AggregateTrip, t.ID, EventTripCreated, map[string]any{
		FieldTripID:         t.ID.String(),
		FieldOwnerID:        t.OwnerID,
		FieldJoinCode:       t.JoinCode,
		FieldCorrelationKey: t.CorrelationKey,
		FieldTitle:          t.Title,
	})
	e.CreatedAt = now.UTC()
	return e
}

// MarkPublished records a successful relay at now.
func (e *Entry) MarkPublished(now time.Time) {
	e.Status = StatusPublished
	e.PublishedAt = &now
}

// RecordFailure counts a failed relay and reports whether the entry has used
// up its retries and is now parked as failed.
func (e *Entry) RecordFailure() bool {
	e.RetryCount++
	if e.RetryCount >= e.MaxRetries {
		e.Status = StatusFailed
	}
	return e.Status == StatusFailed
}
