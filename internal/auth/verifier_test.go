package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, secret string, subject string, expiry time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiry),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestVerifyCredentialSuccess(t *testing.T) {
	v := NewJWTVerifier("secret")
	token := signToken(t, "secret", "42", time.Now().Add(time.Hour))

	userID, err := v.VerifyCredential(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, 42, userID)
}

func TestVerifyCredentialExpired(t *testing.T) {
	v := NewJWTVerifier("secret")
	token := signToken(t, "secret", "42", time.Now().Add(-time.Hour))

	_, err := v.VerifyCredential(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyCredentialWrongSecret(t *testing.T) {
	v := NewJWTVerifier("secret")
	token := signToken(t, "other", "42", time.Now().Add(time.Hour))

	_, err := v.VerifyCredential(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyCredentialGarbage(t *testing.T) {
	v := NewJWTVerifier("secret")

	for _, token := range []string{"", "not-a-token", "a.b.c"} {
		_, err := v.VerifyCredential(context.Background(), token)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestVerifyCredentialNonNumericSubject(t *testing.T) {
	v := NewJWTVerifier("secret")
	token := signToken(t, "secret", "alice", time.Now().Add(time.Hour))

	_, err := v.VerifyCredential(context.Background(), token)
	require.ErrorIs(t, err, ErrInvalidToken)
}
