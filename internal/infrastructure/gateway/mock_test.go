package gateway

import (
	"context"
	"strings"
	"testing"
	"time"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDraft() trip.Draft {
	return trip.Draft{
		Title:      "Lisbon",
		GroupLabel: "Friends",
		StartAt:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestNewMockGateway_Defaults(t *testing.T) {
	gw := NewMockGateway("sandbox")

	assert.Equal(t, "sandbox", gw.Name())
	assert.True(t, gw.SupportsSessions())
}

func TestMockGateway_WithSessionsDisabled(t *testing.T) {
	gw := NewMockGateway("sandbox", WithSessions(false))

	assert.False(t, gw.SupportsSessions())
	_, err := gw.CreateSession(context.Background(), SessionRequest{ActorID: "user-1"})
	assert.Error(t, err)
}

func TestMockGateway_SessionLifecycle(t *testing.T) {
	gw := NewMockGateway("sandbox", WithHostedURL("https://pay.example.com/checkout/"))
	ctx := context.Background()

	sess, err := gw.CreateSession(ctx, SessionRequest{
		IntentID:   "intent:abc",
		ActorID:    "user-1",
		Draft:      testDraft(),
		SuccessURL: "https://trips.example.com/return?status=success&session_id=" + SessionIDPlaceholder,
		CancelURL:  "https://trips.example.com/return?status=cancelled",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sess.ID, "cs_"))
	assert.Equal(t, "https://pay.example.com/checkout/"+sess.ID, sess.URL)

	v, err := gw.VerifyBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, v.Paid)

	redirect, err := gw.Complete(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://trips.example.com/return?status=success&session_id="+sess.ID, redirect)

	v, err = gw.VerifyBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, v.Paid)
	assert.Equal(t, "intent:abc", v.IntentID)
	assert.Equal(t, "user-1", v.ActorID)
	require.NotNil(t, v.Draft)
	assert.Equal(t, "Lisbon", v.Draft.Title)

	// A paid session says nothing about flag-only checkouts.
	av, err := gw.VerifyByActor(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, av.Paid)
}

func TestMockGateway_VerifyReturnsCopyOfDraft(t *testing.T) {
	gw := NewMockGateway("sandbox")
	ctx := context.Background()

	sess, err := gw.CreateSession(ctx, SessionRequest{ActorID: "user-1", Draft: testDraft()})
	require.NoError(t, err)

	v, err := gw.VerifyBySession(ctx, sess.ID)
	require.NoError(t, err)
	v.Draft.Title = "changed"

	v2, err := gw.VerifyBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", v2.Draft.Title)
}

func TestMockGateway_Cancel(t *testing.T) {
	gw := NewMockGateway("sandbox")
	ctx := context.Background()

	sess, err := gw.CreateSession(ctx, SessionRequest{
		ActorID:   "user-1",
		Draft:     testDraft(),
		CancelURL: "https://trips.example.com/return?status=cancelled",
	})
	require.NoError(t, err)

	redirect, err := gw.Cancel(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://trips.example.com/return?status=cancelled", redirect)

	v, err := gw.VerifyBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, v.Paid)
}

func TestMockGateway_UnknownSession(t *testing.T) {
	gw := NewMockGateway("sandbox")

	_, err := gw.VerifyBySession(context.Background(), "cs_missing")
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)

	_, err = gw.Complete("cs_missing")
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
}

func TestMockGateway_ActorRedirect(t *testing.T) {
	gw := NewMockGateway("sandbox", WithSessions(false))
	ctx := context.Background()

	url, err := gw.RedirectTo(ctx, RedirectRequest{
		Token:      intent.ActorToken("user-2"),
		ActorHint:  "user-2",
		AttemptID:  "intent:first",
		SuccessURL: "https://trips.example.com/return?status=success",
	})
	require.NoError(t, err)

	id := url[strings.LastIndex(url, "/")+1:]
	assert.True(t, strings.HasPrefix(id, "pl_"))

	av, err := gw.VerifyByActor(ctx, "user-2")
	require.NoError(t, err)
	assert.False(t, av.Paid)

	redirect, err := gw.Complete(id)
	require.NoError(t, err)
	assert.Equal(t, "https://trips.example.com/return?status=success", redirect)

	av, err = gw.VerifyByActor(ctx, "user-2")
	require.NoError(t, err)
	assert.True(t, av.Paid)
	assert.Equal(t, "intent:first", av.AttemptID)

	// Actor checkouts carry no session to verify.
	_, err = gw.VerifyBySession(ctx, id)
	assert.ErrorIs(t, err, domainErrors.ErrSessionNotFound)
}

func TestMockGateway_MarkActorPaid(t *testing.T) {
	gw := NewMockGateway("sandbox", WithSessions(false))
	ctx := context.Background()

	assert.ErrorIs(t, gw.MarkActorPaid("user-3"), domainErrors.ErrSessionNotFound)

	_, err := gw.RedirectTo(ctx, RedirectRequest{Token: intent.ActorToken("user-3"), ActorHint: "user-3", AttemptID: "intent:a"})
	require.NoError(t, err)
	require.NoError(t, gw.MarkActorPaid("user-3"))

	av, err := gw.VerifyByActor(ctx, "user-3")
	require.NoError(t, err)
	assert.True(t, av.Paid)
	assert.Equal(t, "intent:a", av.AttemptID)

	// Paying twice is refused.
	assert.Error(t, gw.MarkActorPaid("user-3"))
}

func TestMockGateway_NewAttemptSupersedesPaidOne(t *testing.T) {
	gw := NewMockGateway("sandbox", WithSessions(false))
	ctx := context.Background()

	_, err := gw.RedirectTo(ctx, RedirectRequest{Token: intent.ActorToken("user-4"), ActorHint: "user-4", AttemptID: "intent:a"})
	require.NoError(t, err)
	require.NoError(t, gw.MarkActorPaid("user-4"))

	_, err = gw.RedirectTo(ctx, RedirectRequest{Token: intent.ActorToken("user-4"), ActorHint: "user-4", AttemptID: "intent:b"})
	require.NoError(t, err)

	av, err := gw.VerifyByActor(ctx, "user-4")
	require.NoError(t, err)
	assert.False(t, av.Paid)
	assert.Equal(t, "intent:b", av.AttemptID)
}

func TestMockGateway_VerifyByActorWithoutCheckout(t *testing.T) {
	gw := NewMockGateway("sandbox")

	av, err := gw.VerifyByActor(context.Background(), "nobody")
	require.NoError(t, err)
	assert.False(t, av.Paid)
	assert.Empty(t, av.AttemptID)
}

func TestMockGateway_FailureRate(t *testing.T) {
	gw := NewMockGateway("sandbox", WithFailureRate(1.0))

	_, err := gw.VerifyByActor(context.Background(), "user-1")
	assert.ErrorIs(t, err, domainErrors.ErrGatewayUnavailable)
}

func TestMockGateway_LatencyRespectsContext(t *testing.T) {
	gw := NewMockGateway("sandbox", WithLatency(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := gw.VerifyByActor(ctx, "user-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
