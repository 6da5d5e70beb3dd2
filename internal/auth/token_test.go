package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const testSecret = "super-secret-jwt-token-with-at-least-32-characters"

func signTestToken(t *testing.T, v *TokenValidator, sub string, expiry time.Time) string {
	t.Helper()
	token, err := v.Sign(SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "imudb-test",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(expiry),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Email: "editor@ntc.net.np",
	})
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestNewTokenValidator_RequiresSecret(t *testing.T) {
	if _, err := NewTokenValidator("  ", "", ""); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestTokenValidator_ValidToken(t *testing.T) {
	v, err := NewTokenValidator(testSecret, "imudb-test", "authenticated")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sub := uuid.New()
	token := signTestToken(t, v, sub.String(), time.Now().Add(time.Hour))

	claims, err := v.Validate(token)
	if err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
	id, err := claims.UserID()
	if err != nil {
		t.Fatalf("unexpected subject error: %v", err)
	}
	if id != sub {
		t.Fatalf("expected subject %s, got %s", sub, id)
	}
	if claims.Email != "editor@ntc.net.np" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
}

func TestTokenValidator_RejectsExpiredToken(t *testing.T) {
	v, _ := NewTokenValidator(testSecret, "", "")
	token := signTestToken(t, v, uuid.NewString(), time.Now().Add(-time.Minute))

	if _, err := v.Validate(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestTokenValidator_RejectsWrongAudience(t *testing.T) {
	v, _ := NewTokenValidator(testSecret, "", "service_role")
	token := signTestToken(t, v, uuid.NewString(), time.Now().Add(time.Hour))

	if _, err := v.Validate(token); err == nil {
		t.Fatal("expected audience mismatch to be rejected")
	}
}

func TestTokenValidator_RejectsForeignSignature(t *testing.T) {
	signer, _ := NewTokenValidator("another-secret-of-sufficient-length-0000", "", "")
	v, _ := NewTokenValidator(testSecret, "", "")
	token := signTestToken(t, signer, uuid.NewString(), time.Now().Add(time.Hour))

	if _, err := v.Validate(token); err == nil {
		t.Fatal("expected signature mismatch to be rejected")
	}
}

func TestTokenValidator_RejectsNoneAlgorithm(t *testing.T) {
	v, _ := NewTokenValidator(testSecret, "", "")
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("failed to build unsigned token: %v", err)
	}
	if _, err := v.Validate(token); err == nil {
		t.Fatal("expected alg=none token to be rejected")
	}
}

func TestTokenValidator_Revoke(t *testing.T) {
	v, _ := NewTokenValidator(testSecret, "", "")
	expiry := time.Now().Add(time.Hour)
	token := signTestToken(t, v, uuid.NewString(), expiry)

	v.Revoke(token, expiry)
	if _, err := v.Validate(token); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked, got %v", err)
	}

	other := signTestToken(t, v, uuid.NewString(), expiry)
	if _, err := v.Validate(other); err != nil {
		t.Fatalf("revocation leaked to another token: %v", err)
	}
}

func TestSessionClaims_UserIDRejectsGarbage(t *testing.T) {
	claims := &SessionClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"}}
	if _, err := claims.UserID(); err == nil {
		t.Fatal("expected error for non-uuid subject")
	}
}
