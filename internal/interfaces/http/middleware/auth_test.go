package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/antaeus/billing/internal/infrastructure/auth"
	"github.com/antaeus/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Duration) error { return nil }
func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func newAuthEngine(t *testing.T, tokens TokenValidator, revocations auth.Revocations) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(AdminAuth(AdminAuthConfig{Tokens: tokens, Revocations: revocations, Logger: zaptest.NewLogger(t)}))
	r.GET("/protected", func(c *gin.Context) {
		subject := ""
		if claims := GetClaims(c); claims != nil {
			subject = claims.Subject
		}
		c.JSON(http.StatusOK, gin.H{"subject": subject})
	})
	return r
}

func doGet(r http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return resp.Error.Code
}

func TestAdminAuth_Disabled(t *testing.T) {
	r := newAuthEngine(t, auth.NewTokenService("", "", 0), nil)

	w := doGet(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminAuth(t *testing.T) {
	tokens := auth.NewTokenService("s3cret", "", time.Minute)
	revocations := auth.NewMemoryRevocations()
	r := newAuthEngine(t, tokens, revocations)

	token, err := tokens.Issue("ops")
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		w := doGet(r, "Bearer "+token.AccessToken)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"subject":"ops"}`, w.Body.String())
	})

	t.Run("scheme is case insensitive", func(t *testing.T) {
		w := doGet(r, "bearer "+token.AccessToken)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing header", func(t *testing.T) {
		w := doGet(r, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, errorCode(t, w))
	})

	t.Run("wrong scheme", func(t *testing.T) {
		w := doGet(r, "Basic "+token.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, errorCode(t, w))
	})

	t.Run("garbage token", func(t *testing.T) {
		w := doGet(r, "Bearer not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenInvalid, errorCode(t, w))
	})

	t.Run("token signed with another secret", func(t *testing.T) {
		other, err := auth.NewTokenService("other", "", time.Minute).Issue("ops")
		require.NoError(t, err)

		w := doGet(r, "Bearer "+other.AccessToken)
		assert.Equal(t, dto.ErrCodeTokenInvalid, errorCode(t, w))
	})

	t.Run("revoked token", func(t *testing.T) {
		revoked, err := tokens.Issue("ops")
		require.NoError(t, err)
		claims, err := tokens.Validate(revoked.AccessToken)
		require.NoError(t, err)
		require.NoError(t, revocations.Revoke(context.Background(), claims.ID, time.Minute))

		w := doGet(r, "Bearer "+revoked.AccessToken)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeTokenRevoked, errorCode(t, w))
	})
}

func TestAdminAuth_ExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-time.Hour)
	issuer := auth.NewTokenService("s3cret", "", time.Minute, auth.WithClock(func() time.Time { return issuedAt }))
	token, err := issuer.Issue("ops")
	require.NoError(t, err)

	r := newAuthEngine(t, auth.NewTokenService("s3cret", "", time.Minute), nil)

	w := doGet(r, "Bearer "+token.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeTokenExpired, errorCode(t, w))
}

func TestAdminAuth_RevocationStoreDown(t *testing.T) {
	tokens := auth.NewTokenService("s3cret", "", time.Minute)
	token, err := tokens.Issue("ops")
	require.NoError(t, err)

	r := newAuthEngine(t, tokens, failingRevocations{})

	w := doGet(r, "Bearer "+token.AccessToken)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, dto.ErrCodeUnavailable, errorCode(t, w))
}
