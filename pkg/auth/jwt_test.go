package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/internal/config"
	"github.com/carebook/carebook/internal/domain"
)

func newTestManager(secret string) *JWTManager {
	return NewJWTManager(config.JWTConfig{
		Secret:          secret,
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "carebook-test",
	})
}

func TestTokenPairRoundTrip(t *testing.T) {
	m := newTestManager("test-secret-that-is-long-enough!")
	claims := &domain.Claims{
		UserID: uuid.New(),
		Email:  "pat@example.test",
		Role:   domain.RoleDoctor,
	}

	pair, err := m.GenerateTokenPair(claims)
	if err != nil {
		t.Fatalf("GenerateTokenPair() failed: %v", err)
	}

	got, err := m.ValidateAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken() failed: %v", err)
	}
	if got.UserID != claims.UserID || got.Email != claims.Email || got.Role != claims.Role {
		t.Errorf("claims = %+v, want %+v", got, claims)
	}

	if _, err := m.ValidateRefreshToken(pair.RefreshToken); err != nil {
		t.Errorf("ValidateRefreshToken() failed: %v", err)
	}
}

func TestTokenTypeMismatch(t *testing.T) {
	m := newTestManager("test-secret-that-is-long-enough!")
	pair, err := m.GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleUser})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := m.ValidateAccessToken(pair.RefreshToken); err != ErrTokenTypeMismatch {
		t.Errorf("refresh-as-access: got %v, want ErrTokenTypeMismatch", err)
	}
	if _, err := m.ValidateRefreshToken(pair.AccessToken); err != ErrTokenTypeMismatch {
		t.Errorf("access-as-refresh: got %v, want ErrTokenTypeMismatch", err)
	}
}

func TestWrongSecret(t *testing.T) {
	pair, err := newTestManager("secret-one-that-is-long-enough!!").GenerateTokenPair(&domain.Claims{UserID: uuid.New(), Role: domain.RoleUser})
	if err != nil {
		t.Fatal(err)
	}

	other := newTestManager("secret-two-that-is-long-enough!!")
	if _, err := other.ValidateAccessToken(pair.AccessToken); err != ErrTokenInvalid {
		t.Errorf("got %v, want ErrTokenInvalid", err)
	}
}

func TestGarbageToken(t *testing.T) {
	m := newTestManager("test-secret-that-is-long-enough!")
	if _, err := m.ValidateAccessToken("not.a.jwt"); err != ErrTokenInvalid {
		t.Errorf("got %v, want ErrTokenInvalid", err)
	}
}
