package gateway

import (
	"context"

	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
)

// SessionIDPlaceholder is substituted by the gateway with the real session id
// when it redirects the payer back to the success URL.
const SessionIDPlaceholder = "{SESSION_ID}"

type SessionRequest struct {
	IntentID   string
	ActorID    string
	Draft      trip.Draft
	SuccessURL string
	CancelURL  string
}

type Session struct {
	ID  string
	URL string
}

type RedirectRequest struct {
	Token     intent.Token
	ActorHint string
	// AttemptID names this payment attempt. Flag-only verification echoes
	// it back so a return can be matched to the checkout that was paid.
	AttemptID  string
	SuccessURL string
	CancelURL  string
}

// SessionVerification is what the gateway knows about a checkout session.
// Draft is nil when the session carried no usable metadata.
type SessionVerification struct {
	Paid     bool
	Draft    *trip.Draft
	IntentID string
	ActorID  string
}

// ActorVerification reports on the actor's most recent flag-only checkout.
// AttemptID is empty when the gateway cannot name the attempt.
type ActorVerification struct {
	Paid      bool
	AttemptID string
}

type Gateway interface {
	// Name returns the gateway name.
	Name() string
	// SupportsSessions reports whether the gateway can issue sessions carrying metadata.
	SupportsSessions() bool
	// CreateSession opens a hosted checkout session bound to the given intent.
	CreateSession(ctx context.Context, req SessionRequest) (*Session, error)
	// RedirectTo returns the hosted checkout URL for a token.
	RedirectTo(ctx context.Context, req RedirectRequest) (string, error)
	// VerifyBySession confirms payment for a session id.
	VerifyBySession(ctx context.Context, sessionID string) (*SessionVerification, error)
	// VerifyByActor confirms payment of the actor's latest checkout when only a
	// success flag came back.
	VerifyByActor(ctx context.Context, actorID string) (*ActorVerification, error)
}
