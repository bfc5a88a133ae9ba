package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/google/uuid"
)

type checkoutStatus string

const (
	statusOpen      checkoutStatus = "open"
	statusPaid      checkoutStatus = "paid"
	statusCancelled checkoutStatus = "cancelled"
)

type mockCheckout struct {
	id         string
	shape      intent.TokenShape
	actorID    string
	intentID   string
	draft      *trip.Draft
	successURL string
	cancelURL  string
	status     checkoutStatus
}

// MockGateway is an in-memory hosted checkout used by the sandbox and tests.
type MockGateway struct {
	name        string
	sessions    bool
	hostedURL   string
	latency     time.Duration
	failureRate float64

	mu        sync.Mutex
	checkouts map[string]*mockCheckout
	// latest is the newest actor-shaped checkout per actor. Flag-only
	// verification only ever reports on that attempt.
	latest map[string]string
}

type MockGatewayOption func(*MockGateway)

func WithLatency(d time.Duration) MockGatewayOption {
	return func(g *MockGateway) { g.latency = d }
}

func WithFailureRate(rate float64) MockGatewayOption {
	return func(g *MockGateway) { g.failureRate = rate }
}

func WithSessions(enabled bool) MockGatewayOption {
	return func(g *MockGateway) { g.sessions = enabled }
}

func WithHostedURL(u string) MockGatewayOption {
	return func(g *MockGateway) { g.hostedURL = strings.TrimRight(u, "/") }
}

func NewMockGateway(name string, opts ...MockGatewayOption) *MockGateway {
	g := &MockGateway{
		name:      name,
		sessions:  true,
		hostedURL: "http://localhost:8080/sandbox/checkout",
		checkouts: make(map[string]*mockCheckout),
		latest:    make(map[string]string),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *MockGateway) Name() string { return g.name }

func (g *MockGateway) SupportsSessions() bool { return g.sessions }

func (g *MockGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if !g.sessions {
		return nil, fmt.Errorf("%s: sessions not supported", g.name)
	}
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	d := req.Draft
	c := &mockCheckout{
		id:         "cs_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16],
		shape:      intent.ShapeSession,
		actorID:    req.ActorID,
		intentID:   req.IntentID,
		draft:      &d,
		successURL: req.SuccessURL,
		cancelURL:  req.CancelURL,
		status:     statusOpen,
	}

	g.mu.Lock()
	g.checkouts[c.id] = c
	g.mu.Unlock()

	return &Session{ID: c.id, URL: g.hostedURL + "/" + c.id}, nil
}

func (g *MockGateway) RedirectTo(ctx context.Context, req RedirectRequest) (string, error) {
	if err := g.simulate(ctx); err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if req.Token.Shape == intent.ShapeSession {
		if _, ok := g.checkouts[req.Token.Value]; !ok {
			return "", domainErrors.ErrSessionNotFound
		}
		return g.hostedURL + "/" + req.Token.Value, nil
	}

	c := &mockCheckout{
		id:         "pl_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16],
		shape:      intent.ShapeActor,
		actorID:    req.ActorHint,
		intentID:   req.AttemptID,
		successURL: req.SuccessURL,
		cancelURL:  req.CancelURL,
		status:     statusOpen,
	}
	g.checkouts[c.id] = c
	if c.actorID != "" {
		g.latest[c.actorID] = c.id
	}
	return g.hostedURL + "/" + c.id, nil
}

func (g *MockGateway) VerifyBySession(ctx context.Context, sessionID string) (*SessionVerification, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.checkouts[sessionID]
	if !ok || c.shape != intent.ShapeSession {
		return nil, domainErrors.ErrSessionNotFound
	}

	v := &SessionVerification{
		Paid:     c.status == statusPaid,
		IntentID: c.intentID,
		ActorID:  c.actorID,
	}
	if c.draft != nil {
		d := *c.draft
		v.Draft = &d
	}
	return v, nil
}

func (g *MockGateway) VerifyByActor(ctx context.Context, actorID string) (*ActorVerification, error) {
	if err := g.simulate(ctx); err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.checkouts[g.latest[actorID]]
	if !ok {
		return &ActorVerification{}, nil
	}
	return &ActorVerification{Paid: c.status == statusPaid, AttemptID: c.intentID}, nil
}

// Complete marks a hosted checkout as paid and returns the success redirect.
func (g *MockGateway) Complete(id string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.checkouts[id]
	if !ok {
		return "", domainErrors.ErrSessionNotFound
	}
	if c.status == statusOpen {
		c.status = statusPaid
	}
	return strings.ReplaceAll(c.successURL, SessionIDPlaceholder, c.id), nil
}

// Cancel abandons a hosted checkout and returns the cancel redirect.
func (g *MockGateway) Cancel(id string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.checkouts[id]
	if !ok {
		return "", domainErrors.ErrSessionNotFound
	}
	if c.status == statusOpen {
		c.status = statusCancelled
	}
	return c.cancelURL, nil
}

// MarkActorPaid pays the actor's newest flag-only checkout. Older attempts
// and session checkouts are left alone.
func (g *MockGateway) MarkActorPaid(actorID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	c, ok := g.checkouts[g.latest[actorID]]
	if !ok || c.status != statusOpen {
		return fmt.Errorf("no open checkout for actor %s: %w", actorID, domainErrors.ErrSessionNotFound)
	}
	c.status = statusPaid
	return nil
}

func (g *MockGateway) simulate(ctx context.Context) error {
	if g.latency > 0 {
		select {
		case <-time.After(g.latency):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if g.failureRate > 0 && rand.Float64() < g.failureRate {
		return fmt.Errorf("%s: simulated outage: %w", g.name, domainErrors.ErrGatewayUnavailable)
	}
	return nil
}
