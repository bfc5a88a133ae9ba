package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/redis/go-redis/v9"
)

const defaultEphemeralTTL = 2 * time.Hour

// IntentKey is the key an actor's pending intent is cached under.
func IntentKey(actorID string) string {
	return "checkout:intent:" + actorID
}

// EphemeralStore is the last-resort intent tier. Entries expire on their own,
// capped by the intent's own expiry.
type EphemeralStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewEphemeralStore(client redis.Cmdable, ttl time.Duration) *EphemeralStore {
	if ttl <= 0 {
		ttl = defaultEphemeralTTL
	}
	return &EphemeralStore{client: client, ttl: ttl}
}

func (s *EphemeralStore) Name() intent.Tier { return intent.TierEphemeral }

func (s *EphemeralStore) Save(ctx context.Context, in *intent.Intent) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	if err := s.client.Set(ctx, IntentKey(in.ActorID), payload, s.expiry(in)).Err(); err != nil {
		return fmt.Errorf("cache intent: %w", err)
	}
	return nil
}

func (s *EphemeralStore) Load(ctx context.Context, actorID string) (*intent.Intent, error) {
	payload, err := s.client.Get(ctx, IntentKey(actorID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domainErrors.ErrIntentNotFound
		}
		return nil, fmt.Errorf("read cached intent: %w", err)
	}
	var in intent.Intent
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, fmt.Errorf("unmarshal cached intent: %w", err)
	}
	return &in, nil
}

func (s *EphemeralStore) Delete(ctx context.Context, actorID string) error {
	if err := s.client.Del(ctx, IntentKey(actorID)).Err(); err != nil {
		return fmt.Errorf("delete cached intent: %w", err)
	}
	return nil
}

func (s *EphemeralStore) expiry(in *intent.Intent) time.Duration {
	if in.ExpiresAt.IsZero() {
		return s.ttl
	}
	left := time.Until(in.ExpiresAt)
	if left <= 0 {
		return time.Second
	}
	if left < s.ttl {
		return left
	}
	return s.ttl
}
