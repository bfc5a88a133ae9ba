package controller

import (
	"context"
	"net/http"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/cassiomorais/tripcheckout/internal/domain/trip"
	customMW "github.com/cassiomorais/tripcheckout/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TripReader is the read side of trip.Repository.
type TripReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*trip.Trip, error)
	GetByJoinCode(ctx context.Context, code string) (*trip.Trip, error)
}

// TripController serves created trips.
type TripController struct {
	trips TripReader
}

func NewTripController(trips TripReader) *TripController {
	return &TripController{trips: trips}
}

// Get handles GET /api/v1/trips/{id}
func (h *TripController) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := customMW.GetUserID(r.Context())
	if !ok {
		writeError(w, domainErrors.ErrUnauthorized)
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid trip id", Code: "invalid_id"})
		return
	}

	t, err := h.trips.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if t.OwnerID != userID {
		writeError(w, domainErrors.ErrForbidden)
		return
	}
	writeJSON(w, http.StatusOK, FromTrip(t))
}

// Join handles GET /api/v1/trips/join/{code}
func (h *TripController) Join(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !trip.ValidJoinCode(code) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid join code", Code: "invalid_join_code"})
		return
	}

	t, err := h.trips.GetByJoinCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromTripPreview(t))
}
