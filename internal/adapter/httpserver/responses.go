// Package httpserver contains the HTTP handlers, middleware, and error
// mapping for the survey analysis API.
package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a domain sentinel into the API error envelope.
// Pipeline failures get fixed client-facing messages; the underlying cause
// stays in the server logs only.
func writeError(w http.ResponseWriter, r *http.Request, err error, details any) {
	status := http.StatusInternalServerError
	code := "INTERNAL"
	msg := "Internal server error"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
		code = "INVALID_ARGUMENT"
		msg = err.Error()
	case errors.Is(err, domain.ErrInvalidState):
		status = http.StatusBadRequest
		code = "INVALID_STATE"
		msg = err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
		code = "UNAUTHORIZED"
		msg = "Invalid or missing credentials"
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
		code = "FORBIDDEN"
		msg = "Insufficient permissions"
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		code = "NOT_FOUND"
		msg = "Survey not found"
	case errors.Is(err, domain.ErrExtractionFailed):
		status = http.StatusUnprocessableEntity
		code = "EXTRACTION_FAILED"
		msg = "AI analysis generated invalid response format. Please try again."
	case errors.Is(err, domain.ErrValidationFailed):
		status = http.StatusUnprocessableEntity
		code = "VALIDATION_FAILED"
		msg = "AI analysis failed to generate valid results. Please try again."
	case errors.Is(err, domain.ErrCompletionFailed):
		status = http.StatusInternalServerError
		code = "COMPLETION_FAILED"
		msg = "Survey analysis failed. Please try again later."
	case errors.Is(err, domain.ErrAuthUnavailable):
		status = http.StatusServiceUnavailable
		code = "AUTH_UNAVAILABLE"
		msg = "Authentication service unavailable"
	}
	if status >= http.StatusInternalServerError {
		LoggerFrom(r).Error("request failed", "error", err)
	}
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: msg, Details: details}})
}
