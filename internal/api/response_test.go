package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calmstack/mantra/internal/domain"
)

func TestSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Success(w, http.StatusOK, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	assert.Equal(t, "ok", data["status"])
}

func TestErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "mood is required")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "mood is required", resp["error"])
}

func TestDomainErrorToHTTP(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{domain.ErrCodeValidation, http.StatusBadRequest},
		{domain.ErrCodeNotFound, http.StatusNotFound},
		{domain.ErrCodeSourceUnavailable, http.StatusBadGateway},
		{domain.ErrCodeCandidateRejected, http.StatusUnprocessableEntity},
		{domain.ErrCodeArtifactFetchFailed, http.StatusBadGateway},
		{domain.ErrCodeBudgetExhausted, http.StatusServiceUnavailable},
		{domain.ErrCodePersistenceUnavailable, http.StatusServiceUnavailable},
		{domain.ErrCodeInternalError, http.StatusInternalServerError},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := domain.NewDomainError(tc.code, "test")
		assert.Equal(t, tc.status, DomainErrorToHTTP(err), "code %s", tc.code)
	}

	assert.Equal(t, http.StatusOK, DomainErrorToHTTP(nil))
	assert.Equal(t, http.StatusInternalServerError, DomainErrorToHTTP(errors.New("plain")))
}
