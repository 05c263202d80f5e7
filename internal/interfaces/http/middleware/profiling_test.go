package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/antaeus/billing/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func labelsOf(ctx context.Context) map[string]string {
	out := map[string]string{}
	pprof.ForLabels(ctx, func(k, v string) bool {
		out[k] = v
		return true
	})
	return out
}

func TestProfiling(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var seen map[string]string
	capture := func(c *gin.Context) {
		seen = labelsOf(c.Request.Context())
		c.Status(http.StatusOK)
	}

	r := gin.New()
	r.Use(Profiling(DefaultProfilingConfig()))
	r.POST("/api/v1/invoices/:id/charge", capture)
	r.GET("/health", capture)

	t.Run("labels route and method", func(t *testing.T) {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/invoices/9/charge", nil))
		assert.Equal(t, "/api/v1/invoices/:id/charge", seen[telemetry.ProfilingLabelRoute])
		assert.Equal(t, http.MethodPost, seen[telemetry.ProfilingLabelMethod])
	})

	t.Run("skips health", func(t *testing.T) {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Empty(t, seen)
	})
}

func TestProfiling_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var seen map[string]string

	r := gin.New()
	r.Use(Profiling(ProfilingConfig{Enabled: false}))
	r.GET("/x", func(c *gin.Context) {
		seen = labelsOf(c.Request.Context())
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Empty(t, seen)
}
