package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/antaeus/billing/internal/infrastructure/auth"
	"github.com/antaeus/billing/internal/interfaces/http/dto"
	"github.com/antaeus/billing/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// TokenExchanger swaps the admin secret for a token
type TokenExchanger interface {
	Exchange(secret, subject string) (auth.Token, error)
}

// AuthHandler serves /api/v1/auth
type AuthHandler struct {
	BaseHandler
	tokens      TokenExchanger
	revocations auth.Revocations
	now         func() time.Time
}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler(tokens TokenExchanger, revocations auth.Revocations, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: newBaseHandler(logger),
		tokens:      tokens,
		revocations: revocations,
		now:         time.Now,
	}
}

// Token godoc
// @ID           issueAdminToken
// @Summary      Issue an admin token
// @Description  Exchange the admin secret for a short-lived bearer token. Rate limited per client IP.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body dto.TokenRequest true "Admin secret"
// @Success      200 {object} dto.Response{data=auth.Token}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "secret is required")
		return
	}

	token, err := h.tokens.Exchange(req.Secret, req.Subject)
	switch {
	case err == nil:
		h.logger.Info("Admin token issued", zap.String("subject", req.Subject), zap.String("request_id", requestID(c)))
		h.Success(c, token)
	case errors.Is(err, auth.ErrAuthDisabled):
		h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, "admin authentication is not configured")
	case errors.Is(err, auth.ErrInvalidCredential):
		h.logger.Warn("Rejected admin secret", zap.String("client_ip", c.ClientIP()), zap.String("request_id", requestID(c)))
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "invalid credentials")
	default:
		h.HandleError(c, err)
	}
}

// Revoke godoc
// @ID           revokeAdminToken
// @Summary      Revoke the current token
// @Description  Revokes the presented bearer token until it expires
// @Tags         auth
// @Success      204
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /auth/revoke [post]
func (h *AuthHandler) Revoke(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil || claims.ID == "" {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, "no token to revoke")
		return
	}
	if h.revocations == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "token revocation is not configured")
		return
	}

	ttl := claims.RemainingTTL(h.now())
	if ttl <= 0 {
		c.Status(http.StatusNoContent)
		return
	}
	if err := h.revocations.Revoke(c.Request.Context(), claims.ID, ttl); err != nil {
		h.HandleError(c, err)
		return
	}
	h.logger.Info("Admin token revoked", zap.String("jti", claims.ID), zap.String("subject", claims.Subject))
	c.Status(http.StatusNoContent)
}

var _ TokenExchanger = (*auth.TokenService)(nil)
