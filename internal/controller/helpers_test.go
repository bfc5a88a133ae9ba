package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusCreated, ErrorResponse{Error: "bad request", Code: "invalid_input"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"bad request","code":"invalid_input"}`, w.Body.String())
}

func TestWriteError_ValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewValidationError("start_at", "must not be in the past"))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "validation_error", response.Code)
	assert.Contains(t, response.Error, "start_at")
}

func TestWriteError_DomainErrors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"intent not found", domainErrors.ErrIntentNotFound, http.StatusNotFound, "not_found"},
		{"trip not found", domainErrors.ErrTripNotFound, http.StatusNotFound, "not_found"},
		{"session not found", domainErrors.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
		{"wrapped gateway outage", fmt.Errorf("start checkout: %w", domainErrors.ErrGatewayUnavailable), http.StatusServiceUnavailable, "gateway_unavailable"},
		{"creation in progress", domainErrors.ErrCreationInProgress, http.StatusConflict, "creation_in_progress"},
		{"creation timeout", domainErrors.ErrCreationTimeout, http.StatusGatewayTimeout, "creation_timeout"},
		{"unauthorized", domainErrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", domainErrors.ErrForbidden, http.StatusForbidden, "forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedCode, response.Code)
		})
	}
}

func TestWriteError_GenericDomainError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewDomainError("custom_error", "custom error message", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "custom_error", response.Code)
}

func TestWriteError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, errors.New("connection reset by peer"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "internal_error", response.Code)
	assert.Equal(t, "internal server error", response.Error)
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		field   string
		message string
	}{
		{"invalid json", `{invalid`, "body", "invalid JSON"},
		{"empty body", ``, "body", "invalid JSON"},
		{"unknown field", `{"title":"Lisbon","start_at":"2025-06-01T09:00:00Z","price":10}`, "body", "unknown field"},
		{"missing title", `{"start_at":"2025-06-01T09:00:00Z"}`, "title", "required"},
		{"missing start", `{"title":"Lisbon"}`, "start_at", "required"},
		{"title too long", `{"title":"` + strings.Repeat("a", 121) + `","start_at":"2025-06-01T09:00:00Z"}`, "title", "max"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(tt.body))

			var dst CheckoutRequest
			err := decodeAndValidate(req, &dst)

			var validationErr *domainErrors.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
			assert.Contains(t, validationErr.Message, tt.message)
		})
	}
}

func TestDecodeAndValidate_Success(t *testing.T) {
	body := `{"title":"Weekend in Lisbon","group_label":"Friends","start_at":"2025-06-01T09:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))

	var dst CheckoutRequest
	require.NoError(t, decodeAndValidate(req, &dst))

	d := dst.Draft()
	assert.Equal(t, "Weekend in Lisbon", d.Title)
	assert.Equal(t, "Friends", d.GroupLabel)
	assert.Nil(t, d.EndAt)
}

func TestWriteError_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.ErrGatewayUnavailable)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))

	w = httptest.NewRecorder()
	writeError(w, domainErrors.ErrTripNotFound)
	assert.Empty(t, w.Header().Get("Retry-After"))
}

func TestWriteError_ValidationField(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewValidationError("end_at", "must not be before start_at"))

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "end_at", response.Field)
}
