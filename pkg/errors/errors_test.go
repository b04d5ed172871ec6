package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, GetHTTPStatus(NewNotFoundError("application", "app-1")))
	assert.Equal(t, http.StatusForbidden, GetHTTPStatus(NewForbiddenError("submit", "step is locked")))
	assert.Equal(t, http.StatusUnauthorized, GetHTTPStatus(NewUnauthorizedError("invalid credentials")))
	assert.Equal(t, http.StatusConflict, GetHTTPStatus(NewConflictError("step", "already submitted", "")))
	assert.Equal(t, http.StatusUnprocessableEntity, GetHTTPStatus(NewValidationError("email", "required")))
	assert.Equal(t, http.StatusBadRequest, GetHTTPStatus(NewBadRequestError("unverified files")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(NewInternalError("boom", nil)))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(fmt.Errorf("plain error")))
}

func TestTypeChecksSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("loading state: %w", NewNotFoundError("step", "s-1"))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsConflict(wrapped))

	wrapped = fmt.Errorf("submitting: %w", NewConflictError("step", "already submitted", "v-9"))
	assert.True(t, IsConflict(wrapped))
}

func TestConflictResponseCarriesLatestVersion(t *testing.T) {
	resp := ToResponse(NewConflictError("step", "already submitted", "v-9"))

	assert.Equal(t, "CONFLICT", resp.Code)
	assert.Equal(t, map[string]string{"latest_version_id": "v-9"}, resp.Details)
}

func TestAllowedFieldsResponse(t *testing.T) {
	resp := ToResponse(NewAllowedFieldsError("resubmission touches restricted fields", []string{"f1", "f2"}))

	assert.Equal(t, "VALIDATION_FAILED", resp.Code)
	assert.Equal(t, map[string]any{"allowed_fields": []string{"f1", "f2"}}, resp.Details)
}

func TestInternalErrorKeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewInternalError("publishing decisions", cause)

	assert.ErrorIs(t, err, cause)
}
