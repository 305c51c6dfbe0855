// Package auth issues and validates admin tokens for the mutating score routes.
//
// Auth is optional: with no admin password hash configured every check
// passes and token issuance is refused with ErrAuthDisabled.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/smashrelay/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const adminSubject = "admin"

var (
	ErrAuthDisabled    = errors.New("admin auth is disabled")
	ErrInvalidPassword = errors.New("invalid password")
	ErrInvalidToken    = errors.New("invalid or expired token")
	ErrMissingSecret   = errors.New("jwt secret is not configured")
)

// Service provides admin token functionality
type Service struct {
	config *config.AuthConfig
	now    func() time.Time
}

// New creates a new auth service
func New(cfg *config.AuthConfig) *Service {
	return &Service{
		config: cfg,
		now:    time.Now,
	}
}

// Enabled reports whether tokens are required
func (s *Service) Enabled() bool {
	return s.config.Enabled()
}

// IssuedToken is a signed admin token
type IssuedToken struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken checks the admin password and returns a signed JWT
func (s *Service) IssueToken(password string) (*IssuedToken, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}
	if s.config.JWTSecret == "" {
		return nil, ErrMissingSecret
	}

	if err := bcrypt.CompareHashAndPassword([]byte(s.config.AdminPasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.config.TokenExpiry)
	tokenID := uuid.New().String()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        tokenID,
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &IssuedToken{
		Token:     tokenString,
		TokenID:   tokenID,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken checks a token's signature, expiry and subject
func (s *Service) ValidateToken(tokenString string) (*jwt.RegisteredClaims, error) {
	if !s.Enabled() {
		return nil, ErrAuthDisabled
	}
	if s.config.JWTSecret == "" {
		return nil, ErrInvalidToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Subject != adminSubject {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// HashPassword produces a bcrypt hash suitable for RELAY_ADMIN_PASSWORD_HASH
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
