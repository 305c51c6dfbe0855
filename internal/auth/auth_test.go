package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/alexbotov/smashrelay/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "correct horse battery staple"

func setupTestAuth(t *testing.T) *Service {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	return New(&config.AuthConfig{
		AdminPasswordHash: string(hash),
		JWTSecret:         "test-secret-key-12345",
		TokenExpiry:       time.Hour,
	})
}

func TestIssueToken(t *testing.T) {
	svc := setupTestAuth(t)

	t.Run("ValidPassword", func(t *testing.T) {
		issued, err := svc.IssueToken(testPassword)
		if err != nil {
			t.Fatalf("IssueToken failed: %v", err)
		}
		if issued.Token == "" || issued.TokenID == "" {
			t.Error("Expected token and token ID")
		}
		if time.Until(issued.ExpiresAt) < 59*time.Minute {
			t.Errorf("Expected ~1h expiry, got %v", issued.ExpiresAt)
		}
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := svc.IssueToken("hunter2")
		if !errors.Is(err, ErrInvalidPassword) {
			t.Errorf("Expected ErrInvalidPassword, got %v", err)
		}
	})
}

func TestValidateToken(t *testing.T) {
	svc := setupTestAuth(t)

	t.Run("RoundTrip", func(t *testing.T) {
		issued, _ := svc.IssueToken(testPassword)
		claims, err := svc.ValidateToken(issued.Token)
		if err != nil {
			t.Fatalf("ValidateToken failed: %v", err)
		}
		if claims.ID != issued.TokenID {
			t.Errorf("Expected jti %s, got %s", issued.TokenID, claims.ID)
		}
		if claims.Subject != "admin" {
			t.Errorf("Expected subject admin, got %s", claims.Subject)
		}
	})

	t.Run("Garbage", func(t *testing.T) {
		if _, err := svc.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := setupTestAuth(t)
		other.config.JWTSecret = "someone-else"
		issued, _ := other.IssueToken(testPassword)

		if _, err := svc.ValidateToken(issued.Token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("Expired", func(t *testing.T) {
		issued, _ := svc.IssueToken(testPassword)

		later := New(svc.config)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		if _, err := later.ValidateToken(issued.Token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
		}
	})

	t.Run("WrongSubject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "viewer",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, err := token.SignedString([]byte(svc.config.JWTSecret))
		if err != nil {
			t.Fatalf("Failed to sign: %v", err)
		}
		if _, err := svc.ValidateToken(signed); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("NoExpiry", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "admin"})
		signed, _ := token.SignedString([]byte(svc.config.JWTSecret))
		if _, err := svc.ValidateToken(signed); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})
}

func TestDisabled(t *testing.T) {
	svc := New(&config.AuthConfig{JWTSecret: "x", TokenExpiry: time.Hour})

	if svc.Enabled() {
		t.Fatal("Expected auth disabled")
	}
	if _, err := svc.IssueToken(testPassword); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Expected ErrAuthDisabled, got %v", err)
	}
	if _, err := svc.ValidateToken("anything"); !errors.Is(err, ErrAuthDisabled) {
		t.Errorf("Expected ErrAuthDisabled, got %v", err)
	}
}

func TestGeneratedSecret(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	cfg := &config.AuthConfig{AdminPasswordHash: string(hash), TokenExpiry: time.Hour}
	svc := New(cfg)

	t.Run("EmptySecretRefused", func(t *testing.T) {
		if _, err := svc.IssueToken(testPassword); !errors.Is(err, ErrMissingSecret) {
			t.Errorf("Expected ErrMissingSecret, got %v", err)
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, _ := token.SignedString([]byte("x"))
		if _, err := svc.ValidateToken(signed); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("GuessedSecretRejected", func(t *testing.T) {
		if _, err := cfg.EnsureJWTSecret(); err != nil {
			t.Fatalf("EnsureJWTSecret failed: %v", err)
		}

		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			Subject:   "admin",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		})
		signed, _ := forged.SignedString([]byte("smashrelay-dev-secret-change-me"))
		if _, err := svc.ValidateToken(signed); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Expected ErrInvalidToken, got %v", err)
		}

		issued, err := svc.IssueToken(testPassword)
		if err != nil {
			t.Fatalf("IssueToken failed: %v", err)
		}
		if _, err := svc.ValidateToken(issued.Token); err != nil {
			t.Errorf("Expected issued token to validate, got %v", err)
		}
	})
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")); err != nil {
		t.Errorf("Expected hash to match: %v", err)
	}
}
