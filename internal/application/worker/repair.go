package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrPermanent marks an event that will never succeed on retry.
var ErrPermanent = errors.New("permanent failure")

// Locker takes a cross-process lock on key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// TripCreated is the part of a trip.created event the repair needs.
type TripCreated struct {
	TripID  uuid.UUID
	OwnerID string
}

// ParseTripCreated reads a trip.created payload. A payload that cannot be
// parsed is permanent.
func ParseTripCreated(aggregateID string, payload map[string]any) (TripCreated, error) {
	raw, _ := payload[outbox.FieldTripID].(string)
	if raw == "" {
		raw = aggregateID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return TripCreated{}, fmt.Errorf("%w: trip id %q: %w", ErrPermanent, raw, err)
	}
	owner, _ := payload[outbox.FieldOwnerID].(string)
	return TripCreated{TripID: id, OwnerID: owner}, nil
}

// MembershipRepair makes sure every created trip has its owner membership.
// Creation writes the membership outside the trip transaction, so it can be
// missing when that second write failed.
type MembershipRepair struct {
	trips   trip.Repository
	members trip.MembershipRepository
	locker  Locker
	lockTTL time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

func NewMembershipRepair(
	trips trip.Repository,
	members trip.MembershipRepository,
	locker Locker,
	lockTTL time.Duration,
	logger zerolog.Logger,
) *MembershipRepair {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &MembershipRepair{
		trips:   trips,
		members: members,
		locker:  locker,
		lockTTL: lockTTL,
		now:     time.Now,
		logger:  observability.Component(logger, "membership_repair"),
	}
}

// Handle reports whether it added a missing membership. Errors wrapping
// ErrPermanent should be parked rather than retried.
func (m *MembershipRepair) Handle(ctx context.Context, ev TripCreated) (bool, error) {
	if ev.TripID == uuid.Nil {
		return false, fmt.Errorf("%w: event without trip id", ErrPermanent)
	}

	if m.locker != nil {
		release, acquired, err := m.locker.TryLock(ctx, "membership:"+ev.TripID.String(), m.lockTTL)
		if err != nil {
			return false, fmt.Errorf("lock trip %s: %w", ev.TripID, err)
		}
		if !acquired {
			return false, domainErrors.ErrLockAcquisitionFailed
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				m.logger.Warn().Err(err).Str("trip_id", ev.TripID.String()).Msg("failed to release repair lock")
			}
		}()
	}

	t, err := m.trips.GetByID(ctx, ev.TripID)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTripNotFound) {
			return false, fmt.Errorf("%w: trip %s: %w", ErrPermanent, ev.TripID, err)
		}
		return false, fmt.Errorf("load trip %s: %w", ev.TripID, err)
	}
	if ev.OwnerID != "" && ev.OwnerID != t.OwnerID {
		m.logger.Warn().
			Str("trip_id", t.ID.String()).
			Str("event_owner_id", ev.OwnerID).
			Str("owner_id", t.OwnerID).
			Msg("event owner differs from stored trip, using stored owner")
	}

	if _, err := m.members.Get(ctx, t.ID, t.OwnerID); err == nil {
		return false, nil
	}

	if err := m.members.Add(ctx, trip.NewOwnerMembership(t, m.now())); err != nil {
		return false, fmt.Errorf("add owner membership for trip %s: %w", t.ID, err)
	}
	m.logger.Info().Str("trip_id", t.ID.String()).Str("owner_id", t.OwnerID).Msg("owner membership repaired")
	return true, nil
}
