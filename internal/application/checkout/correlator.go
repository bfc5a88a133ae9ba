package checkout

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/gateway"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// Return URL parameters written by the gateway redirect.
const (
	ParamStatus    = "status"
	ParamSessionID = "session_id"

	StatusSuccess   = "success"
	StatusCancelled = "cancelled"
)

// Kind is the classification of a page load.
type Kind string

const (
	KindNone      Kind = "none"
	KindSuccess   Kind = "success"
	KindCancelled Kind = "cancelled"
)

// Signals are the return parameters observed on a page load.
type Signals struct {
	Status    string
	SessionID string
}

// ParseSignals reads the return parameters from a query string.
func ParseSignals(q url.Values) Signals {
	return Signals{
		Status:    q.Get(ParamStatus),
		SessionID: q.Get(ParamSessionID),
	}
}

// Present reports whether any return parameter was observed.
func (s Signals) Present() bool {
	return strings.TrimSpace(s.Status) != "" || strings.TrimSpace(s.SessionID) != ""
}

// Classification is the result of Classify. Token is set for session-shaped
// successes only; flag-only successes are bound to the actor by the caller.
type Classification struct {
	Kind  Kind
	Shape intent.TokenShape
	Token intent.Token
}

// Classify maps return signals to a classification. It is pure.
func Classify(s Signals) Classification {
	switch strings.ToLower(strings.TrimSpace(s.Status)) {
	case StatusSuccess:
		if id := strings.TrimSpace(s.SessionID); id != "" {
			return Classification{Kind: KindSuccess, Shape: intent.ShapeSession, Token: intent.SessionToken(id)}
		}
		return Classification{Kind: KindSuccess, Shape: intent.ShapeActor}
	case StatusCancelled, "canceled", "cancel":
		return Classification{Kind: KindCancelled}
	default:
		return Classification{Kind: KindNone}
	}
}

// StripSignals returns a copy of u without the return parameters, so a refresh
// of the cleaned URL classifies as None.
func StripSignals(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	cp := *u
	q := cp.Query()
	q.Del(ParamStatus)
	q.Del(ParamSessionID)
	cp.RawQuery = q.Encode()
	return &cp
}

// Correlator mints the token that ties a pending intent to a payment attempt.
type Correlator struct {
	gateway   gateway.Gateway
	returnURL string
	logger    zerolog.Logger
	metrics   *observability.Metrics
}

func NewCorrelator(gw gateway.Gateway, returnURL string, logger zerolog.Logger, metrics *observability.Metrics) *Correlator {
	return &Correlator{
		gateway:   gw,
		returnURL: returnURL,
		logger:    observability.Component(logger, "correlator"),
		metrics:   metrics,
	}
}

// Mint prefers a gateway session carrying the draft and intent id. Gateways
// without sessions get an actor token and return with a success flag only.
func (c *Correlator) Mint(ctx context.Context, in *intent.Intent) (intent.Token, string, error) {
	cancelURL := withQuery(c.returnURL, ParamStatus+"="+StatusCancelled)

	if c.gateway.SupportsSessions() {
		sess, err := c.gateway.CreateSession(ctx, gateway.SessionRequest{
			IntentID:   in.CorrelationKey(),
			ActorID:    in.ActorID,
			Draft:      in.Draft,
			SuccessURL: withQuery(c.returnURL, ParamStatus+"="+StatusSuccess+"&"+ParamSessionID+"="+gateway.SessionIDPlaceholder),
			CancelURL:  cancelURL,
		})
		if err != nil {
			return intent.Token{}, "", fmt.Errorf("create checkout session: %w", err)
		}
		c.started(intent.ShapeSession)
		return intent.SessionToken(sess.ID), sess.URL, nil
	}

	token := intent.ActorToken(in.ActorID)
	redirect, err := c.gateway.RedirectTo(ctx, gateway.RedirectRequest{
		Token:      token,
		ActorHint:  in.ActorID,
		AttemptID:  in.CorrelationKey(),
		SuccessURL: withQuery(c.returnURL, ParamStatus+"="+StatusSuccess),
		CancelURL:  cancelURL,
	})
	if err != nil {
		return intent.Token{}, "", fmt.Errorf("build checkout redirect: %w", err)
	}
	c.started(intent.ShapeActor)
	return token, redirect, nil
}

func (c *Correlator) started(shape intent.TokenShape) {
	if c.metrics != nil {
		c.metrics.CheckoutsStarted.WithLabelValues(string(shape)).Inc()
	}
	c.logger.Debug().Str("shape", string(shape)).Msg("checkout token minted")
}

func withQuery(base, query string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + query
}
