package testutil

import (
	"time"

	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Now is the fixed clock used across tests.
var Now = time.Date(2025, 5, 20, 12, 0, 0, 0, time.UTC)

// Clock returns a clock frozen at Now.
func Clock() func() time.Time {
	return func() time.Time { return Now }
}

// NewTestDraft returns a valid draft for a trip starting 2025-06-01T09:00Z.
func NewTestDraft(title string) trip.Draft {
	return trip.Draft{
		Title:      title,
		GroupLabel: "Friends",
		StartAt:    time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func NewTestIntent(actorID string, d trip.Draft) *intent.Intent {
	return intent.New(actorID, d, Now, 24*time.Hour)
}

func NewTestTrip(ownerID string) *trip.Trip {
	t := trip.NewTrip(NewTestDraft("Lisbon"), ownerID, "intent:"+uuid.New().String(), Now)
	t.JoinCode = "K7M2PQ"
	return t
}

// NewMetrics returns metrics registered on a private registry.
func NewMetrics() *observability.Metrics {
	return observability.NewMetrics("test", prometheus.NewRegistry())
}

// NopLogger discards everything.
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
