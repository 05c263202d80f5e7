// Package auth issues and verifies the bearer tokens guarding the admin API.
package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// RoleAdmin is the only role the billing API knows.
const RoleAdmin = "billing-admin"

const defaultTokenTTL = 15 * time.Minute

var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrTokenNotYetValid  = errors.New("token is not yet valid")
	ErrInvalidClaims     = errors.New("invalid token claims")
	ErrInvalidCredential = errors.New("invalid admin secret")
	ErrAuthDisabled      = errors.New("admin authentication is not configured")
)

// Claims are the JWT claims of an admin token
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Token is what the token endpoint hands out
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// TokenService exchanges the configured admin secret for short-lived HS256
// tokens. The secret may be given in plain text or as a bcrypt hash; either
// way the configured value is also the signing key.
type TokenService struct {
	secret []byte
	hashed bool
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithClock overrides time.Now
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) {
		s.now = now
	}
}

// NewTokenService creates a token service. An empty secret disables auth.
func NewTokenService(secret, issuer string, ttl time.Duration, opts ...TokenServiceOption) *TokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	if issuer == "" {
		issuer = "antaeus-billing"
	}
	s := &TokenService{
		secret: []byte(secret),
		hashed: isBcryptHash(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// Enabled reports whether a secret is configured.
func (s *TokenService) Enabled() bool {
	return len(s.secret) > 0
}

// TTL returns the lifetime of issued tokens
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// CheckSecret compares candidate with the configured secret in constant time.
func (s *TokenService) CheckSecret(candidate string) error {
	if !s.Enabled() {
		return ErrAuthDisabled
	}
	if s.hashed {
		if bcrypt.CompareHashAndPassword(s.secret, []byte(candidate)) != nil {
			return ErrInvalidCredential
		}
		return nil
	}
	if subtle.ConstantTimeCompare(s.secret, []byte(candidate)) != 1 {
		return ErrInvalidCredential
	}
	return nil
}

// Exchange verifies the admin secret and issues a token for subject.
func (s *TokenService) Exchange(secret, subject string) (Token, error) {
	if err := s.CheckSecret(secret); err != nil {
		return Token{}, err
	}
	return s.Issue(subject)
}

// Issue signs a new admin token.
func (s *TokenService) Issue(subject string) (Token, error) {
	if !s.Enabled() {
		return Token{}, ErrAuthDisabled
	}
	if subject == "" {
		subject = "admin"
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{s.issuer},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: RoleAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expires}, nil
}

// Validate parses and verifies an admin token.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Role != RoleAdmin || claims.ID == "" {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}

// RemainingTTL returns how long the token stays valid, never negative.
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(now), 0)
}
