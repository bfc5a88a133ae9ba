package intent

import (
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/google/uuid"
)

// Tier names the storage backend an intent was read from.
type Tier string

const (
	TierStaging   Tier = "staging"
	TierLocal     Tier = "local"
	TierEphemeral Tier = "ephemeral"
	TierGateway   Tier = "gateway"
)

// Intent is a draft stashed for an actor while they are away at the payment
// gateway. It is either consumed by trip creation or discarded; never edited.
type Intent struct {
	ID        uuid.UUID  `json:"id"`
	ActorID   string     `json:"actor_id"`
	Draft     trip.Draft `json:"draft"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	Tier      Tier       `json:"-"`
}

// New creates an intent for actorID that expires after ttl.
func New(actorID string, d trip.Draft, now time.Time, ttl time.Duration) *Intent {
	now = now.UTC()
	return &Intent{
		ID:        uuid.New(),
		ActorID:   actorID,
		Draft:     d.Normalize(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Expired reports whether the intent is past its expiry at now.
func (i *Intent) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}

// CorrelationKey is the key trip creation is made idempotent on.
func (i *Intent) CorrelationKey() string {
	return IntentKey(i.ID)
}

// IntentKey formats the correlation key for an intent id.
func IntentKey(id uuid.UUID) string {
	return "intent:" + id.String()
}
