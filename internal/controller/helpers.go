package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	domainErrors "github.com/cassiomorais/tripcheckout/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// validate reports fields by their JSON names so request errors and draft
// validation errors read the same.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorMapping struct {
	err        error
	status     int
	code       string
	retryAfter string
}

var errorMappings = []errorMapping{
	{err: domainErrors.ErrIntentNotFound, status: http.StatusNotFound, code: "not_found"},
	{err: domainErrors.ErrTripNotFound, status: http.StatusNotFound, code: "not_found"},
	{err: domainErrors.ErrSessionNotFound, status: http.StatusNotFound, code: "session_not_found"},
	{err: domainErrors.ErrInvalidInput, status: http.StatusBadRequest, code: "invalid_input"},
	{err: domainErrors.ErrDuplicateIdempotencyKey, status: http.StatusConflict, code: "duplicate_request"},
	{err: domainErrors.ErrCreationInProgress, status: http.StatusConflict, code: "creation_in_progress", retryAfter: "2"},
	{err: domainErrors.ErrGatewayUnavailable, status: http.StatusServiceUnavailable, code: "gateway_unavailable", retryAfter: "5"},
	{err: domainErrors.ErrGatewayTimeout, status: http.StatusGatewayTimeout, code: "gateway_timeout"},
	{err: domainErrors.ErrCreationTimeout, status: http.StatusGatewayTimeout, code: "creation_timeout"},
	{err: domainErrors.ErrUnauthorized, status: http.StatusUnauthorized, code: "unauthorized"},
	{err: domainErrors.ErrForbidden, status: http.StatusForbidden, code: "forbidden"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		resp.Field = validationErr.Field
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			if m.retryAfter != "" {
				w.Header().Set("Retry-After", m.retryAfter)
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	writeJSON(w, http.StatusInternalServerError, resp)
}

// decodeAndValidate reads one JSON object into dst and runs its validate tags.
// Unknown fields are rejected so a typo never silently drops draft data.
func decodeAndValidate(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
