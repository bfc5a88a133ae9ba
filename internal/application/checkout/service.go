package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/gateway"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// TripCreator is the creation side of the flow.
type TripCreator interface {
	Create(ctx context.Context, req CreateRequest) (*CreationResult, error)
	Lookup(ctx context.Context, correlationKey string) (*trip.Trip, error)
}

type ServiceConfig struct {
	IntentTTL time.Duration
	// ReplayWindow bounds how old a trip may be and still be reported as
	// the replay of a flag-only return whose intent was already purged.
	// Zero means no bound.
	ReplayWindow time.Duration
}

// Service owns the collaborators shared by every checkout and every return.
type Service struct {
	tiers      *Tiers
	correlator *Correlator
	gateway    gateway.Gateway
	creator    TripCreator
	cfg        ServiceConfig
	now        Clock
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

type ServiceOption func(*Service)

func WithClock(now Clock) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(
	tiers *Tiers,
	correlator *Correlator,
	gw gateway.Gateway,
	creator TripCreator,
	cfg ServiceConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
	opts ...ServiceOption,
) *Service {
	if cfg.IntentTTL <= 0 {
		cfg.IntentTTL = 24 * time.Hour
	}
	s := &Service{
		tiers:      tiers,
		correlator: correlator,
		gateway:    gw,
		creator:    creator,
		cfg:        cfg,
		now:        time.Now,
		logger:     observability.Component(logger, "checkout"),
		metrics:    metrics,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type StartResult struct {
	Intent       *intent.Intent
	Token        intent.Token
	RedirectURL  string
	TiersWritten int
	State        State
}

// Start stashes the draft in every tier and mints the token for the payment
// redirect. A draft that fails validation never leaves the form.
func (s *Service) Start(ctx context.Context, actorID string, d trip.Draft) (*StartResult, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, domainErrors.ErrUnauthorized
	}
	now := s.now()
	d = d.Normalize()
	if err := d.Validate(now); err != nil {
		return nil, err
	}

	in := intent.New(actorID, d, now, s.cfg.IntentTTL)
	written := s.tiers.Save(ctx, in)
	if written == 0 {
		// Only the gateway session can carry the draft now.
		s.logger.Warn().Str("actor_id", actorID).Str("intent_id", in.ID.String()).Msg("intent not persisted in any tier")
	}

	token, redirect, err := s.correlator.Mint(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("start checkout: %w", err)
	}

	s.logger.Info().
		Str("actor_id", actorID).
		Str("intent_id", in.ID.String()).
		Str("shape", string(token.Shape)).
		Int("tiers_written", written).
		Msg("checkout started")

	return &StartResult{
		Intent:       in,
		Token:        token,
		RedirectURL:  redirect,
		TiersWritten: written,
		State:        StateAwaitingPayment,
	}, nil
}

// Pending returns the draft awaiting payment for actorID, if any tier has it.
func (s *Service) Pending(ctx context.Context, actorID string) (*intent.Intent, error) {
	return s.tiers.LoadBestAvailable(ctx, actorID)
}

// Discard removes the actor's pending intent from every tier.
func (s *Service) Discard(ctx context.Context, actorID string) error {
	return s.tiers.Purge(ctx, actorID)
}

// NewFlow returns the state machine for one mount of the return page.
func (s *Service) NewFlow() *Flow {
	return &Flow{svc: s, guard: NewProcessGuard(), state: StateIdle}
}

// Return runs a fresh flow for one return request.
func (s *Service) Return(ctx context.Context, actorID string, signals Signals) Outcome {
	return s.NewFlow().Mount(ctx, actorID, signals)
}
