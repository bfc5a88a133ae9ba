package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/outbox"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/cassiomorais/tripcheckout/pkg/retry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// MembershipWarning is surfaced when the trip exists but the owner membership
// could not be written. The repair worker adds it later.
const MembershipWarning = "Your trip was created, but we could not add you as its owner yet. This will be fixed automatically shortly."

// detachedGrace bounds a write that keeps running after the caller stopped waiting.
const detachedGrace = time.Minute

type CreateRequest struct {
	Draft          trip.Draft
	ActorID        string
	CorrelationKey string
}

type CreationResult struct {
	Trip       *trip.Trip
	Membership *trip.Membership
	Replayed   bool
	Warning    string
}

type CreatorConfig struct {
	Timeout          time.Duration
	JoinCodeAttempts uint
	LockTTL          time.Duration
}

// Creator creates a trip and its owner membership exactly once per correlation key.
type Creator struct {
	trips     trip.Repository
	members   trip.MembershipRepository
	txManager TransactionManager
	outbox    OutboxWriter
	locker    Locker
	cfg       CreatorConfig
	now       Clock
	joinCodes func() (string, error)
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

type CreatorOption func(*Creator)

// WithLocker serialises creation for a correlation key across processes.
func WithLocker(l Locker) CreatorOption {
	return func(c *Creator) { c.locker = l }
}

func WithCreatorClock(now Clock) CreatorOption {
	return func(c *Creator) { c.now = now }
}

// WithJoinCodes replaces the join code generator.
func WithJoinCodes(gen func() (string, error)) CreatorOption {
	return func(c *Creator) { c.joinCodes = gen }
}

func NewCreator(
	trips trip.Repository,
	members trip.MembershipRepository,
	txManager TransactionManager,
	outboxWriter OutboxWriter,
	cfg CreatorConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	opts ...CreatorOption,
) *Creator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.JoinCodeAttempts == 0 {
		cfg.JoinCodeAttempts = 5
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}

	c := &Creator{
		trips:     trips,
		members:   members,
		txManager: txManager,
		outbox:    outboxWriter,
		cfg:       cfg,
		now:       time.Now,
		joinCodes: trip.NewJoinCode,
		logger:    observability.Component(logger, "creator"),
		metrics:   metrics,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type createResult struct {
	res *CreationResult
	err error
}

// Create is bounded by the configured timeout. On timeout it returns
// ErrCreationTimeout while the write carries on detached, so the caller
// must treat the outcome as unknown.
func (c *Creator) Create(ctx context.Context, req CreateRequest) (*CreationResult, error) {
	ctx, span := otel.Tracer("checkout").Start(ctx, "creator.create")
	defer span.End()
	span.SetAttributes(attribute.String("correlation_key", req.CorrelationKey))

	start := time.Now()
	workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout+detachedGrace)

	done := make(chan createResult, 1)
	go func() {
		defer cancel()
		res, err := c.create(workCtx, req)
		done <- createResult{res: res, err: err}
	}()

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		c.observe(start, r.res, r.err)
		if r.err != nil {
			span.RecordError(r.err)
		}
		return r.res, r.err
	case <-timer.C:
		c.observe(start, nil, domainErrors.ErrCreationTimeout)
		c.logger.Error().
			Str("actor_id", req.ActorID).
			Str("correlation_key", req.CorrelationKey).
			Dur("timeout", c.cfg.Timeout).
			Msg("trip creation timed out; outcome unknown")
		return nil, domainErrors.ErrCreationTimeout
	case <-ctx.Done():
		c.observe(start, nil, domainErrors.ErrCreationTimeout)
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrCreationTimeout, ctx.Err())
	}
}

func (c *Creator) create(ctx context.Context, req CreateRequest) (*CreationResult, error) {
	now := c.now()
	d := req.Draft.Normalize()
	if err := d.Validate(now); err != nil {
		return nil, err
	}
	if req.ActorID == "" || req.CorrelationKey == "" {
		return nil, fmt.Errorf("%w: actor and correlation key are required", domainErrors.ErrInvalidInput)
	}

	if res, err := c.existing(ctx, req.CorrelationKey, now); res != nil || err != nil {
		return res, err
	}

	if c.locker != nil {
		release, acquired, err := c.locker.TryLock(ctx, "trip:"+req.CorrelationKey, c.cfg.LockTTL)
		switch {
		case err != nil:
			// The unique correlation key still prevents duplicates.
			c.logger.Warn().Err(err).Str("correlation_key", req.CorrelationKey).Msg("creation lock unavailable, continuing")
		case !acquired:
			return nil, domainErrors.ErrCreationInProgress
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					c.logger.Warn().Err(err).Str("correlation_key", req.CorrelationKey).Msg("failed to release creation lock")
				}
			}()
			if res, err := c.existing(ctx, req.CorrelationKey, now); res != nil || err != nil {
				return res, err
			}
		}
	}

	t := trip.NewTrip(d, req.ActorID, req.CorrelationKey, now)
	err := retry.Do(ctx, retry.Config{
		MaxAttempts:  c.cfg.JoinCodeAttempts,
		InitialDelay: 5 * time.Millisecond,
		MaxDelay:     50 * time.Millisecond,
		RetryIf: func(err error) bool {
			return errors.Is(err, domainErrors.ErrDuplicateJoinCode)
		},
		OnRetry: func(n uint, err error) {
			if c.metrics != nil {
				c.metrics.JoinCodeRetries.Inc()
			}
			c.logger.Debug().Uint("attempt", n+1).Msg("join code collision, regenerating")
		},
	}, func() error {
		code, err := c.joinCodes()
		if err != nil {
			return err
		}
		t.JoinCode = code
		return c.insert(ctx, t)
	})
	if err != nil {
		if errors.Is(err, domainErrors.ErrDuplicateTrip) {
			// Lost a race with another process for the same checkout.
			res, lookupErr := c.existing(ctx, req.CorrelationKey, now)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if res != nil {
				return res, nil
			}
		}
		if errors.Is(err, domainErrors.ErrDuplicateJoinCode) {
			return nil, fmt.Errorf("allocate join code after %d attempts: %w", c.cfg.JoinCodeAttempts, err)
		}
		return nil, fmt.Errorf("create trip: %w", err)
	}

	res := &CreationResult{Trip: t}
	res.Membership, res.Warning = c.addOwner(ctx, t, now)

	c.logger.Info().
		Str("trip_id", t.ID.String()).
		Str("actor_id", req.ActorID).
		Str("correlation_key", req.CorrelationKey).
		Msg("trip created")
	return res, nil
}

func (c *Creator) insert(ctx context.Context, t *trip.Trip) error {
	return c.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := c.trips.Create(txCtx, t); err != nil {
			return err
		}
		if err := c.outbox.Insert(txCtx, outbox.NewTripCreated(t, t.CreatedAt)); err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
		return nil
	})
}

// existing returns the trip already created for key, with its owner membership
// re-checked. It returns nil, nil when there is none.
func (c *Creator) existing(ctx context.Context, key string, now time.Time) (*CreationResult, error) {
	t, err := c.trips.GetByCorrelationKey(ctx, key)
	if err != nil {
		if errors.Is(err, domainErrors.ErrTripNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup trip by correlation key: %w", err)
	}

	res := &CreationResult{Trip: t, Replayed: true}
	if m, err := c.members.Get(ctx, t.ID, t.OwnerID); err == nil {
		res.Membership = m
		return res, nil
	}
	res.Membership, res.Warning = c.addOwner(ctx, t, now)
	return res, nil
}

func (c *Creator) addOwner(ctx context.Context, t *trip.Trip, now time.Time) (*trip.Membership, string) {
	m := trip.NewOwnerMembership(t, now)
	if err := c.members.Add(ctx, m); err != nil {
		c.logger.Warn().Err(err).
			Str("trip_id", t.ID.String()).
			Str("actor_id", t.OwnerID).
			Msg("trip created without owner membership")
		return nil, MembershipWarning
	}
	return m, ""
}

// Lookup returns the trip created for a correlation key, or ErrTripNotFound.
func (c *Creator) Lookup(ctx context.Context, correlationKey string) (*trip.Trip, error) {
	return c.trips.GetByCorrelationKey(ctx, correlationKey)
}

func (c *Creator) observe(start time.Time, res *CreationResult, err error) {
	if c.metrics == nil {
		return
	}
	result := "created"
	switch {
	case errors.Is(err, domainErrors.ErrCreationTimeout):
		result = "timeout"
	case err != nil:
		result = "failed"
	case res != nil && res.Replayed:
		result = "replayed"
	}
	c.metrics.TripsCreated.WithLabelValues(result).Inc()
	c.metrics.CreationDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}
