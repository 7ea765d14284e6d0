package httpserver

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fairyhunter13/ai-survey-analyzer/internal/domain"
)

func TestWriteError_SentinelMapping(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err      error
		status   int
		code     string
		contains string
	}{
		{domain.ErrInvalidArgument, http.StatusBadRequest, "INVALID_ARGUMENT", ""},
		{domain.ErrInvalidState, http.StatusBadRequest, "INVALID_STATE", ""},
		{domain.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", ""},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN", ""},
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND", ""},
		{domain.ErrExtractionFailed, http.StatusUnprocessableEntity, "EXTRACTION_FAILED", "invalid response format"},
		{domain.ErrValidationFailed, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "failed to generate valid results"},
		{domain.ErrCompletionFailed, http.StatusInternalServerError, "COMPLETION_FAILED", "try again later"},
		{domain.ErrAuthUnavailable, http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", ""},
		{fmt.Errorf("some unknown condition"), http.StatusInternalServerError, "INTERNAL", ""},
	}
	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			writeError(rec, r, fmt.Errorf("wrapped: %w", tc.err), nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.code)
			if tc.contains != "" {
				assert.Contains(t, rec.Body.String(), tc.contains)
			}
		})
	}
}

func TestWriteError_InternalHidesCause(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rec, r, fmt.Errorf("%w: pq: connection refused", domain.ErrInternal), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
