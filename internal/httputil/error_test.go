package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/stretchr/testify/assert"
)

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"not found", fmt.Errorf("%w: match", bracket.ErrNotFound), http.StatusNotFound},
		{"invalid state", bracket.ErrInvalidState, http.StatusConflict},
		{"write conflict", fmt.Errorf("save: %w", bracket.ErrWriteConflict), http.StatusConflict},
		{"bad configuration", bracket.ErrConfigurationInvalid, http.StatusUnprocessableEntity},
		{"no match", bracket.ErrNoMatchAvailable, http.StatusNoContent},
		{"anything else", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFor(tc.err))
		})
	}
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, "failed to start game", fmt.Errorf("%w: match is closed", bracket.ErrInvalidState))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "match is closed")

	rec = httptest.NewRecorder()
	Error(rec, "failed to get match", errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"abc"}`, rec.Body.String())
}
