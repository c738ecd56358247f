package session

import (
	"crypto/sha256"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

// ErrNoExpiry is returned when a token carries no readable expiry.
var ErrNoExpiry = errors.New("token has no expiry")

// Fingerprint returns a short, non-reversible identifier for a token that
// is safe to log.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return base58.Encode(hash[:])[:12]
}

// TokenExpiry reads the exp claim of a JWT access token. The signature is
// not verified; only the API server can do that.
func TokenExpiry(token string) (time.Time, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		return time.Time{}, ErrNoExpiry
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, ErrNoExpiry
	}

	return exp.Time, nil
}
