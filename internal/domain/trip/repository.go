package trip

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for trip persistence
type Repository interface {
	// Create inserts a trip. It returns ErrDuplicateJoinCode or ErrDuplicateTrip
	// when a uniqueness constraint is hit.
	Create(ctx context.Context, t *Trip) error

	// GetByID retrieves a trip by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Trip, error)

	// GetByCorrelationKey retrieves the trip created for a checkout
	GetByCorrelationKey(ctx context.Context, key string) (*Trip, error)

	// GetByJoinCode retrieves a trip by its join code
	GetByJoinCode(ctx context.Context, code string) (*Trip, error)
}

// MembershipRepository defines the interface for trip memberships
type MembershipRepository interface {
	// Add inserts a membership; adding an existing member is a no-op.
	Add(ctx context.Context, m *Membership) error

	// Get returns the membership of userID in tripID
	Get(ctx context.Context, tripID uuid.UUID, userID string) (*Membership, error)
}
