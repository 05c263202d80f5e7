package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/antaeus/billing/internal/infrastructure/auth"
	"github.com/antaeus/billing/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ClaimsKey is the gin context key holding the validated *auth.Claims
const ClaimsKey = "admin_claims"

// TokenValidator validates admin bearer tokens
type TokenValidator interface {
	Enabled() bool
	Validate(token string) (*auth.Claims, error)
}

// AdminAuthConfig configures AdminAuth
type AdminAuthConfig struct {
	Tokens      TokenValidator
	Revocations auth.Revocations
	Logger      *zap.Logger
}

// AdminAuth requires a valid, unrevoked admin bearer token. When no admin
// secret is configured every request passes.
func AdminAuth(cfg AdminAuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		if cfg.Tokens == nil || !cfg.Tokens.Enabled() {
			c.Next()
			return
		}

		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "missing bearer token")
			return
		}

		claims, err := cfg.Tokens.Validate(raw)
		if err != nil {
			code := dto.ErrCodeTokenInvalid
			if errors.Is(err, auth.ErrExpiredToken) {
				code = dto.ErrCodeTokenExpired
			}
			abortWithError(c, http.StatusUnauthorized, code, err.Error())
			return
		}
		if claims.Role != auth.RoleAdmin {
			abortWithError(c, http.StatusUnauthorized, dto.ErrCodeTokenInvalid, auth.ErrInvalidClaims.Error())
			return
		}

		if cfg.Revocations != nil {
			revoked, err := cfg.Revocations.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				log.Error("Token revocation check failed", zap.Error(err), zap.String("request_id", requestID(c)))
				abortWithError(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "token revocation list unavailable")
				return
			}
			if revoked {
				abortWithError(c, http.StatusUnauthorized, dto.ErrCodeTokenRevoked, "token has been revoked")
				return
			}
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// GetClaims returns the claims stored by AdminAuth, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*auth.Claims)
	return claims
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
