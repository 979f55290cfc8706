// Package token mints and verifies stream access tokens: short-lived
// signed capabilities granting read access to exactly one storage object.
// Tokens deliberately carry no user identity; possession of a valid token is
// the whole authorization check at the delivery proxy.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken covers missing, malformed, tampered and expired tokens.
// Callers must not distinguish these cases to the outside world.
var ErrInvalidToken = errors.New("invalid or expired stream token")

// StreamClaims is the token payload: the storage path plus expiry.
type StreamClaims struct {
	StoragePath string `json:"storage_path"`
	jwt.RegisteredClaims
}

// KeySource supplies the current signing key. It is a function so the key
// can rotate underneath a long-lived Issuer or Verifier.
type KeySource func() []byte

// StaticKey returns a KeySource over a fixed secret.
func StaticKey(secret string) KeySource {
	key := []byte(secret)
	return func() []byte { return key }
}

// Issuer mints stream tokens with a fixed TTL.
type Issuer struct {
	key KeySource
	ttl time.Duration
	now func() time.Time
}

// NewIssuer creates an Issuer. A zero ttl falls back to 60 seconds.
func NewIssuer(key KeySource, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &Issuer{key: key, ttl: ttl, now: time.Now}
}

// Issue mints a signed token authorizing reads of storagePath until the TTL
// elapses. Stateless; nothing is persisted.
func (i *Issuer) Issue(storagePath string) (string, error) {
	secret := i.key()
	if len(secret) == 0 {
		return "", errors.New("stream token signing key unavailable")
	}

	now := i.now()
	claims := &StreamClaims{
		StoragePath: storagePath,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign stream token: %w", err)
	}
	return signed, nil
}

// Verifier validates stream tokens.
type Verifier struct {
	key KeySource
	now func() time.Time
}

// NewVerifier creates a Verifier.
func NewVerifier(key KeySource) *Verifier {
	return &Verifier{key: key, now: time.Now}
}

// Verify checks signature and expiry and returns the authorized storage
// path. Any failure is ErrInvalidToken; callers get no further detail.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidToken
	}

	claims := &StreamClaims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return v.key(), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.StoragePath == "" {
		return "", ErrInvalidToken
	}
	return claims.StoragePath, nil
}
