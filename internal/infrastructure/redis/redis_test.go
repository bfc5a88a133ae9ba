package redis

import (
	"testing"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "checkout:intent:user-1", IntentKey("user-1"))
	assert.Equal(t, "lock:trip:intent:abc", LockKey("trip:intent:abc"))
}

func TestEncodeDecodeEvent(t *testing.T) {
	tripID := uuid.New()
	entry := outbox.NewEntry(outbox.AggregateTrip, tripID, outbox.EventTripCreated, map[string]any{
		"trip_id":  tripID.String(),
		"owner_id": "user-1",
	})
	now := time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

	values, err := EncodeEntry(entry, now)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), values["timestamp"])

	// Redis hands field values back as strings.
	msg := redis.XMessage{ID: "1-0", Values: map[string]any{}}
	for k, v := range values {
		if s, ok := v.(string); ok {
			msg.Values[k] = s
		}
	}

	ev, err := DecodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, "1-0", ev.MessageID)
	assert.Equal(t, entry.ID, ev.EventID)
	assert.Equal(t, tripID, ev.AggregateID)
	assert.Equal(t, outbox.EventTripCreated, ev.EventType)
	assert.Equal(t, "user-1", ev.String("owner_id"))
	assert.Equal(t, "", ev.String("missing"))
}

func TestDecodeEvent_Malformed(t *testing.T) {
	msg := redis.XMessage{ID: "2-0", Values: map[string]any{
		"event_id":     "not-a-uuid",
		"event_type":   outbox.EventTripCreated,
		"aggregate_id": uuid.NewString(),
		"payload":      "{",
	}}

	_, err := DecodeEvent(msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event_id")
	assert.Contains(t, err.Error(), "payload")
}

func TestEphemeralStore_Expiry(t *testing.T) {
	s := NewEphemeralStore(nil, time.Hour)

	assert.Equal(t, time.Hour, s.expiry(&intent.Intent{}))
	assert.Equal(t, time.Hour, s.expiry(&intent.Intent{ExpiresAt: time.Now().Add(24 * time.Hour)}))

	short := s.expiry(&intent.Intent{ExpiresAt: time.Now().Add(10 * time.Minute)})
	assert.LessOrEqual(t, short, 10*time.Minute)
	assert.Greater(t, short, 9*time.Minute)

	assert.Equal(t, time.Second, s.expiry(&intent.Intent{ExpiresAt: time.Now().Add(-time.Minute)}))
	assert.Equal(t, intent.TierEphemeral, s.Name())
}

func TestNewEphemeralStore_DefaultTTL(t *testing.T) {
	assert.Equal(t, defaultEphemeralTTL, NewEphemeralStore(nil, 0).ttl)
}

func TestConnectRetry(t *testing.T) {
	rc := connectRetry(&config.RedisConfig{})
	assert.Equal(t, uint(5), rc.MaxAttempts)
	assert.Equal(t, time.Second, rc.InitialDelay)

	rc = connectRetry(&config.RedisConfig{ConnectRetries: 2, ConnectRetryDelay: 50 * time.Millisecond})
	assert.Equal(t, uint(2), rc.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, rc.InitialDelay)
}
