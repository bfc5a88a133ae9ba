package idempotency

import (
	"context"
	"time"
)

// Record is a stored HTTP response replayed for a repeated Idempotency-Key.
type Record struct {
	Key            string
	ResponseBody   string
	ResponseStatus int
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// Repository stores responses by key. Get returns nil, nil when the key is
// unknown or expired.
type Repository interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, rec *Record) error
}
