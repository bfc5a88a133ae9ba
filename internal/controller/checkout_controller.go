package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/cassiomorais/tripcheckout/internal/application/checkout"
	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/intent"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	customMW "github.com/cassiomorais/tripcheckout/internal/middleware"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// CheckoutService is the part of checkout.Service the HTTP layer drives.
type CheckoutService interface {
	Start(ctx context.Context, actorID string, d trip.Draft) (*checkout.StartResult, error)
	Pending(ctx context.Context, actorID string) (*intent.Intent, error)
	Discard(ctx context.Context, actorID string) error
	Return(ctx context.Context, actorID string, signals checkout.Signals) checkout.Outcome
}

// CheckoutController handles the pay-then-create checkout endpoints.
type CheckoutController struct {
	service CheckoutService
	returns singleflight.Group
}

func NewCheckoutController(service CheckoutService) *CheckoutController {
	return &CheckoutController{service: service}
}

// Start handles POST /api/v1/checkout
func (h *CheckoutController) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := customMW.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	var req CheckoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.service.Start(r.Context(), userID, req.Draft())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromStart(res))
}

// Return handles GET /api/v1/checkout/return
//
// Duplicate requests for the same actor and payment attempt that arrive
// while one is still running share its outcome instead of starting a
// second flow.
func (h *CheckoutController) Return(w http.ResponseWriter, r *http.Request) {
	signals := checkout.ParseSignals(r.URL.Query())
	userID, _ := customMW.GetUserID(r.Context())

	var o checkout.Outcome
	if userID == "" {
		o = h.service.Return(r.Context(), "", signals)
	} else {
		cls := checkout.Classify(signals)
		key := userID + "|" + string(cls.Kind) + "|" + cls.Token.Key()
		v, _, _ := h.returns.Do(key, func() (any, error) {
			return h.service.Return(context.WithoutCancel(r.Context()), userID, signals), nil
		})
		o = v.(checkout.Outcome)
	}

	cleanURL := checkout.StripSignals(r.URL).RequestURI()
	if o.Pending {
		// Signals were not processed; the client must keep them.
		cleanURL = r.URL.RequestURI()
	}
	writeJSON(w, http.StatusOK, FromOutcome(o, cleanURL))
}

// Pending handles GET /api/v1/checkout/pending
func (h *CheckoutController) Pending(w http.ResponseWriter, r *http.Request) {
	userID, ok := customMW.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	in, err := h.service.Pending(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromPending(in))
}

// Discard handles DELETE /api/v1/checkout/pending
func (h *CheckoutController) Discard(w http.ResponseWriter, r *http.Request) {
	userID, ok := customMW.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	// Purge is best effort: tiers that did delete stay deleted, and the rest
	// expire on their own.
	if err := h.service.Discard(r.Context(), userID); err != nil && !errors.Is(err, domainErrors.ErrIntentNotFound) {
		log.Warn().Err(err).Str("actor_id", userID).Msg("pending draft only partly discarded")
	}
	w.WriteHeader(http.StatusNoContent)
}
