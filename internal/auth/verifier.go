// Package auth consumes bearer credentials issued by the external auth
// service and resolves them to a verified caller identity. Token
// issuance and user accounts live outside this system; only HS256
// verification happens here.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

// Identity is the verified caller resolved from a bearer credential.
type Identity struct {
	UserID string
}

// Verifier validates bearer tokens against a shared HMAC secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier with the given HMAC secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates a raw bearer token and returns the caller
// identity. All failures map to model.ErrUnauthenticated.
func (v *Verifier) Verify(tokenString string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, model.ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, model.ErrUnauthenticated
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, model.ErrUnauthenticated
	}
	return Identity{UserID: sub}, nil
}

// FromHeader extracts the token from an Authorization header value and
// verifies it.
func (v *Verifier) FromHeader(header string) (Identity, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return Identity{}, model.ErrUnauthenticated
	}
	return v.Verify(strings.TrimSpace(strings.TrimPrefix(header, prefix)))
}
