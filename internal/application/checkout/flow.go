package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type State string

const (
	StateIdle               State = "idle"
	StateAwaitingPayment    State = "awaiting_payment"
	StateReturnVerification State = "return_verification"
	StateCreating           State = "creating"
	StateSuccess            State = "success"
	StateErrorRecoverable   State = "error_recoverable"
)

// User-facing messages for the recoverable outcomes.
const (
	MsgIntentLost          = "Payment succeeded but intent was lost; re-create, no duplicate charge will occur."
	MsgCreationTimeout     = "Creating your trip is taking longer than expected and it may have completed. Check your trips before trying again."
	MsgPaymentNotConfirmed = "We could not confirm your payment. Check your payment status before trying again."
	MsgGatewayUnavailable  = "We could not reach the payment provider to confirm your payment. Reload this page in a moment."
	MsgCreationFailed      = "Your payment was confirmed but the trip could not be created. Reload this page to try again; no duplicate charge will occur."
	MsgCreationInProgress  = "Your trip is already being created. Reload this page in a moment."
	MsgCancelled           = "Checkout was cancelled. Your trip has not been created."
	MsgReviewDraft         = "Please review your trip details"
	MsgUnexpected          = "Something went wrong while finishing your checkout. Reload this page; no duplicate charge will occur."
)

type Transition struct {
	From   State
	To     State
	Reason string
}

// Outcome is where a mount lands. Mount never returns an error; every failure
// becomes Idle with a message or ErrorRecoverable.
type Outcome struct {
	State       State
	Kind        Kind
	Shape       intent.TokenShape
	Reason      string
	Trip        *trip.Trip
	Membership  *trip.Membership
	Draft       *trip.Draft
	Message     string
	Warning     string
	Replayed    bool
	Pending     bool
	Transitions []Transition
}

// Flow is one mount of the return page. It processes return signals at most
// once; later Mount calls share the first outcome.
type Flow struct {
	svc   *Service
	guard *ProcessGuard

	mu          sync.Mutex
	state       State
	transitions []Transition
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Mount inspects the return signals and drives the flow to a resting state.
// Without an actor nothing runs and the guard stays open, so a later call
// made once the identity is known still processes the signals.
func (f *Flow) Mount(ctx context.Context, actorID string, signals Signals) Outcome {
	if strings.TrimSpace(actorID) == "" {
		cls := Classify(signals)
		return Outcome{State: f.State(), Kind: cls.Kind, Shape: cls.Shape, Reason: "awaiting_identity", Pending: true}
	}

	if !f.guard.TryEnter() {
		o, err := f.guard.Wait(ctx)
		if err != nil {
			return Outcome{State: f.State(), Reason: "in_progress", Pending: true}
		}
		return o
	}

	o := f.safeRun(ctx, actorID, signals)
	f.guard.Finish(o)
	return o
}

func (f *Flow) safeRun(ctx context.Context, actorID string, signals Signals) (o Outcome) {
	ctx, span := otel.Tracer("checkout").Start(ctx, "flow.mount")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			f.svc.logger.Error().Interface("panic", r).Str("actor_id", actorID).Msg("return flow panicked")
			span.SetStatus(codes.Error, "panic")
			o = f.fail(Outcome{}, "panic", MsgUnexpected)
		}
		span.SetAttributes(
			attribute.String("checkout.kind", string(o.Kind)),
			attribute.String("checkout.shape", string(o.Shape)),
			attribute.String("checkout.state", string(o.State)),
			attribute.String("checkout.reason", o.Reason),
		)
		if f.svc.metrics != nil {
			f.svc.metrics.FlowOutcomes.WithLabelValues(string(o.State), o.Reason).Inc()
		}
	}()

	return f.run(ctx, actorID, signals)
}

func (f *Flow) run(ctx context.Context, actorID string, signals Signals) Outcome {
	s := f.svc
	cls := Classify(signals)
	if s.metrics != nil {
		s.metrics.ReturnsClassified.WithLabelValues(string(cls.Kind), string(cls.Shape)).Inc()
	}
	base := Outcome{Kind: cls.Kind, Shape: cls.Shape}

	switch cls.Kind {
	case KindCancelled:
		// Keep the form filled but stop treating the intent as pending.
		if in, err := s.tiers.LoadBestAvailable(ctx, actorID); err == nil {
			d := in.Draft
			base.Draft = &d
		}
		_ = s.tiers.Purge(ctx, actorID)
		base.Message = MsgCancelled
		return f.finish(base, StateIdle, "cancelled")

	case KindSuccess:
		return f.verify(ctx, actorID, cls, base)

	default:
		if in, err := s.tiers.LoadBestAvailable(ctx, actorID); err == nil {
			d := in.Draft
			base.Draft = &d
		}
		return f.finish(base, StateIdle, "no_signals")
	}
}

func (f *Flow) verify(ctx context.Context, actorID string, cls Classification, base Outcome) Outcome {
	s := f.svc
	f.transition(StateReturnVerification, string(cls.Shape))

	var (
		draft          *trip.Draft
		correlationKey string
		attemptKey     string
	)

	if cls.Shape == intent.ShapeSession {
		v, err := s.gateway.VerifyBySession(ctx, cls.Token.Value)
		if err != nil {
			return f.gatewayFailure(base, err, actorID)
		}
		if !v.Paid {
			return f.fail(base, "not_paid", MsgPaymentNotConfirmed)
		}
		if v.ActorID != "" && v.ActorID != actorID {
			s.logger.Warn().Str("actor_id", actorID).Str("session_actor_id", v.ActorID).Msg("session belongs to another actor")
			return f.fail(base, "foreign_session", MsgPaymentNotConfirmed)
		}

		cached, cacheErr := s.tiers.LoadBestAvailable(ctx, actorID)
		switch {
		case v.Draft != nil:
			draft = v.Draft
			if cacheErr == nil && !cached.Draft.Equal(*v.Draft) {
				s.logger.Warn().
					Str("actor_id", actorID).
					Str("tier", string(cached.Tier)).
					Msg("cached draft differs from gateway metadata, using gateway")
			}
		case cacheErr == nil:
			d := cached.Draft
			draft = &d
		}

		attemptKey = v.IntentID
		switch {
		case v.IntentID != "":
			correlationKey = v.IntentID
		case cacheErr == nil:
			correlationKey = cached.CorrelationKey()
		default:
			correlationKey = cls.Token.Key()
		}
	} else {
		v, err := s.gateway.VerifyByActor(ctx, actorID)
		if err != nil {
			return f.gatewayFailure(base, err, actorID)
		}
		if !v.Paid {
			return f.fail(base, "not_paid", MsgPaymentNotConfirmed)
		}
		attemptKey = v.AttemptID
		if in, err := s.tiers.LoadBestAvailable(ctx, actorID); err == nil {
			if attemptKey == "" || in.CorrelationKey() == attemptKey {
				d := in.Draft
				draft = &d
				correlationKey = in.CorrelationKey()
			} else {
				s.logger.Warn().
					Str("actor_id", actorID).
					Str("intent_id", in.ID.String()).
					Str("attempt_id", attemptKey).
					Msg("stored intent belongs to a different checkout than the one paid")
			}
		}
	}

	if draft == nil {
		return f.recoverLost(ctx, actorID, attemptKey, base)
	}

	if err := draft.Validate(s.now()); err != nil {
		d := draft.Normalize()
		base.Draft = &d
		base.Message = fmt.Sprintf("%s: %v", MsgReviewDraft, err)
		s.logger.Warn().Err(err).Str("actor_id", actorID).Msg("recovered draft failed validation")
		return f.finish(base, StateIdle, "invalid_draft")
	}

	return f.create(ctx, actorID, *draft, correlationKey, base)
}

// recoverLost handles a verified payment with no matching draft anywhere. If
// the paid attempt already produced a trip for this actor, an earlier return
// consumed the intent and this one is a replay. Anything else is a lost intent.
func (f *Flow) recoverLost(ctx context.Context, actorID, attemptKey string, base Outcome) Outcome {
	s := f.svc
	if attemptKey != "" {
		t, err := s.creator.Lookup(ctx, attemptKey)
		switch {
		case err == nil && f.isReplay(t, actorID):
			base.Trip = t
			base.Replayed = true
			return f.finish(base, StateSuccess, "replayed")
		case err != nil && !errors.Is(err, domainErrors.ErrTripNotFound):
			s.logger.Warn().Err(err).Str("actor_id", actorID).Str("attempt_id", attemptKey).Msg("replay lookup failed")
		}
	}

	s.logger.Error().Str("actor_id", actorID).Str("attempt_id", attemptKey).Msg("payment verified but intent lost in every tier")
	return f.fail(base, "intent_lost", MsgIntentLost)
}

func (f *Flow) isReplay(t *trip.Trip, actorID string) bool {
	if t == nil || t.OwnerID != actorID {
		return false
	}
	window := f.svc.cfg.ReplayWindow
	return window <= 0 || !t.CreatedAt.Before(f.svc.now().Add(-window))
}

func (f *Flow) create(ctx context.Context, actorID string, d trip.Draft, correlationKey string, base Outcome) Outcome {
	s := f.svc
	f.transition(StateCreating, "verified")

	res, err := s.creator.Create(ctx, CreateRequest{
		Draft:          d,
		ActorID:        actorID,
		CorrelationKey: correlationKey,
	})
	if err != nil {
		base.Draft = &d
		switch {
		case errors.Is(err, domainErrors.ErrCreationTimeout):
			return f.fail(base, "creation_timeout", MsgCreationTimeout)
		case errors.Is(err, domainErrors.ErrCreationInProgress):
			return f.fail(base, "creation_in_progress", MsgCreationInProgress)
		case errors.Is(err, domainErrors.ErrValidationFailed):
			base.Message = fmt.Sprintf("%s: %v", MsgReviewDraft, err)
			return f.finish(base, StateIdle, "invalid_draft")
		default:
			s.logger.Error().Err(err).Str("actor_id", actorID).Str("correlation_key", correlationKey).Msg("trip creation failed")
			return f.fail(base, "creation_failed", MsgCreationFailed)
		}
	}

	_ = s.tiers.Purge(ctx, actorID)

	base.Trip = res.Trip
	base.Membership = res.Membership
	base.Warning = res.Warning
	base.Replayed = res.Replayed
	reason := "created"
	if res.Replayed {
		reason = "replayed"
	}
	return f.finish(base, StateSuccess, reason)
}

func (f *Flow) gatewayFailure(base Outcome, err error, actorID string) Outcome {
	f.svc.logger.Warn().Err(err).Str("actor_id", actorID).Msg("payment verification failed")
	if errors.Is(err, domainErrors.ErrSessionNotFound) {
		return f.fail(base, "session_not_found", MsgPaymentNotConfirmed)
	}
	return f.fail(base, "gateway_error", MsgGatewayUnavailable)
}

func (f *Flow) fail(base Outcome, reason, message string) Outcome {
	base.Message = message
	return f.finish(base, StateErrorRecoverable, reason)
}

func (f *Flow) finish(o Outcome, to State, reason string) Outcome {
	f.transition(to, reason)
	f.mu.Lock()
	o.Transitions = append([]Transition(nil), f.transitions...)
	f.mu.Unlock()
	o.State = to
	o.Reason = reason
	return o
}

func (f *Flow) transition(to State, reason string) {
	f.mu.Lock()
	from := f.state
	f.state = to
	f.transitions = append(f.transitions, Transition{From: from, To: to, Reason: reason})
	f.mu.Unlock()

	f.svc.logger.Debug().Str("from", string(from)).Str("to", string(to)).Str("reason", reason).Msg("checkout transition")
}
