package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/antaeus/billing/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
)

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

func recorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

func TestHealthHandler(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		r := newEngine()
		r.GET("/health", NewHealthHandler(pinger{}, nil).Check)

		w := perform(r, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"success":true,"data":{"status":"ok","database":"up"}}`, w.Body.String())
	})

	t.Run("down", func(t *testing.T) {
		r := newEngine()
		r.GET("/health", NewHealthHandler(pinger{err: errBoom}, nil).Check)

		w := perform(r, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, dto.ErrCodeUnavailable, decode(t, w, nil).Error.Code)
	})
}
