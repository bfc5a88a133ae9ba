package outbox

import (
	"testing"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	aggregateID := uuid.New()
	payload := map[string]any{FieldOwnerID: "user-123"}

	entry := NewEntry(AggregateTrip, aggregateID, EventTripCreated, payload)

	require.NotNil(t, entry)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, aggregateID, entry.AggregateID)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Zero(t, entry.RetryCount)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Nil(t, entry.PublishedAt)
}

func TestNewEntry_UniqueIDs(t *testing.T) {
	aggregateID := uuid.New()
	a := NewEntry(AggregateTrip, aggregateID, EventTripCreated, nil)
	b := NewEntry(AggregateTrip, aggregateID, EventTripCreated, nil)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.AggregateID, b.AggregateID)
}

func TestNewTripCreated(t *testing.T) {
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)
	tr := trip.NewTrip(trip.Draft{Title: "Lisbon", StartAt: now.Add(24 * time.Hour)}, "user-1", "intent:abc", now)
	tr.JoinCode = "K7M2PQ"

	e := NewTripCreated(tr, now)

	assert.Equal(t, AggregateTrip, e.AggregateType)
	assert.Equal(t, EventTripCreated, e.EventType)
	assert.Equal(t, tr.ID, e.AggregateID)
	assert.Equal(t, now, e.CreatedAt)
	assert.Equal(t, map[string]any{
		FieldTripID:         tr.ID.String(),
		FieldOwnerID:        "user-1",
		FieldJoinCode:       "K7M2PQ",
		FieldCorrelationKey: "intent:abc",
		FieldTitle:          "Lisbon",
	}, e.Payload)
}

func TestEntry_MarkPublished(t *testing.T) {
	e := NewEntry(AggregateTrip, uuid.New(), EventTripCreated, nil)
	now := time.Now()

	e.MarkPublished(now)

	assert.Equal(t, StatusPublished, e.Status)
	require.NotNil(t, e.PublishedAt)
	assert.Equal(t, now, *e.PublishedAt)
}

func TestEntry_RecordFailure(t *testing.T) {
	e := NewEntry(AggregateTrip, uuid.New(), EventTripCreated, nil)
	e.MaxRetries = 3

	assert.False(t, e.RecordFailure())
	assert.False(t, e.RecordFailure())
	assert.Equal(t, StatusPending, e.Status)

	assert.True(t, e.RecordFailure())
	assert.Equal(t, StatusFailed, e.Status)
	assert.Equal(t, 3, e.RetryCount)
}
