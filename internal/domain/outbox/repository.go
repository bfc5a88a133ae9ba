package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the outbox table. Insert joins the caller's transaction so an
// event commits or rolls back with its trip.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error

	// GetPending locks up to limit pending entries, oldest first. Call it
	// inside a transaction so the lock lasts until the batch is marked.
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed counts a failed relay; the entry is parked at MaxRetries.
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
