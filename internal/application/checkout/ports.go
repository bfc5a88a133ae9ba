package checkout

import (
	"context"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
)

// Tier is one backend able to hold a pending intent for an actor.
// Load returns errors.ErrIntentNotFound when nothing is stored.
type Tier interface {
	Name() intent.Tier
	Save(ctx context.Context, in *intent.Intent) error
	Load(ctx context.Context, actorID string) (*intent.Intent, error)
	Delete(ctx context.Context, actorID string) error
}

// TransactionManager defines the interface for transaction management.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// OutboxWriter defines the interface for writing to the transactional outbox.
type OutboxWriter interface {
	Insert(ctx context.Context, entry *outbox.Entry) error
}

// Locker takes a cross-process lock on key. acquired is false when another
// holder owns it; release must be called only when acquired is true.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// Clock returns the current time. Tests inject a fixed one.
type Clock func() time.Time
