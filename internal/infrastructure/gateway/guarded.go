package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	// Threshold is the number of consecutive failures that opens the breaker.
	Threshold uint32
	Timeout   time.Duration
}

// Guarded puts a circuit breaker in front of a Gateway. Calls are never retried.
type Guarded struct {
	Gateway
	breaker *gobreaker.CircuitBreaker[any]
	metrics *observability.Metrics
}

func NewGuarded(gw Gateway, settings BreakerSettings, metrics *observability.Metrics) *Guarded {
	if settings.Threshold == 0 {
		settings.Threshold = 5
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}

	g := &Guarded{Gateway: gw, metrics: metrics}
	g.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        gw.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.Threshold
		},
		IsSuccessful: func(err error) bool {
			// An unknown session is an answer, not an outage.
			return err == nil || errors.Is(err, domainErrors.ErrSessionNotFound)
		},
		OnStateChange: func(name string, _ gobreaker.State, to gobreaker.State) {
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			}
		},
	})
	return g
}

func (g *Guarded) State() gobreaker.State {
	return g.breaker.State()
}

func (g *Guarded) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	return execute(g, func() (*Session, error) {
		return g.Gateway.CreateSession(ctx, req)
	})
}

func (g *Guarded) RedirectTo(ctx context.Context, req RedirectRequest) (string, error) {
	return execute(g, func() (string, error) {
		return g.Gateway.RedirectTo(ctx, req)
	})
}

func (g *Guarded) VerifyBySession(ctx context.Context, sessionID string) (*SessionVerification, error) {
	return execute(g, func() (*SessionVerification, error) {
		return g.Gateway.VerifyBySession(ctx, sessionID)
	})
}

func (g *Guarded) VerifyByActor(ctx context.Context, actorID string) (*ActorVerification, error) {
	return execute(g, func() (*ActorVerification, error) {
		return g.Gateway.VerifyByActor(ctx, actorID)
	})
}

func execute[T any](g *Guarded, fn func() (T, error)) (T, error) {
	var zero T

	res, err := g.breaker.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		g.record("failure")
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%s: %w: %v", g.Name(), domainErrors.ErrGatewayUnavailable, err)
		}
		return zero, err
	}
	g.record("success")

	v, ok := res.(T)
	if !ok {
		return zero, fmt.Errorf("%s: unexpected result type %T", g.Name(), res)
	}
	return v, nil
}

func (g *Guarded) record(result string) {
	if g.metrics != nil {
		g.metrics.CircuitBreakerRequests.WithLabelValues(g.Name(), result).Inc()
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
