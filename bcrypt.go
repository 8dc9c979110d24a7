package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// DefaultRefreshTokenHashCost is the bcrypt work factor used when the
// configuration does not set one
const DefaultRefreshTokenHashCost = 11

// HashRefreshToken will generate a salted hash of a refresh token.
// Signed tokens exceed the bcrypt input limit, so the token is digested first.
func HashRefreshToken(token string, cost int) (string, error) {
	if token == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword(refreshTokenDigest(token), refreshTokenHashCost(cost))
	return string(h), err
}

// CompareRefreshTokenAndHash will validate the given refresh token
// matches the stored hash
func CompareRefreshTokenAndHash(token, hash string) error {
	if token == "" || hash == "" {
		return ErrInvalidRefreshToken
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), refreshTokenDigest(token)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidRefreshToken
		}
		return withCause(ErrInvalidRefreshToken, err, nil)
	}
	return nil
}

func refreshTokenDigest(token string) []byte {
	sum := sha256.Sum256([]byte(token))
	return []byte(base64.RawURLEncoding.EncodeToString(sum[:]))
}

func refreshTokenHashCost(cost int) int {
	if cost <= 0 {
		cost = DefaultRefreshTokenHashCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if limit := maxRefreshTokenHashCost(); cost > limit {
		cost = limit
	}
	return cost
}
