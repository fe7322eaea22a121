package auth

import (
	"context"
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier resolves a credential to a user id. The auth service issues the
// tokens; this core only verifies them.
type Verifier interface {
	VerifyCredential(ctx context.Context, token string) (int, error)
}

// JWTVerifier validates HS256 tokens whose subject carries the user id.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a verifier around the shared signing secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// VerifyCredential parses and validates the token and returns the user id
// from the subject claim. Expired or malformed tokens yield ErrInvalidToken.
func (v *JWTVerifier) VerifyCredential(_ context.Context, token string) (int, error) {
	claims := jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	userID, err := strconv.Atoi(claims.Subject)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}
