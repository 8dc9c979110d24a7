package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthClaims represents the identity carried by a validated token
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
	HasRole(role string) bool
	Expires() time.Time
	IssuedAt() time.Time
}

// TokenKind separates access tokens from refresh tokens
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// JWTClaims is the concrete implementation of AuthClaims
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      string    `json:"uid,omitempty"`
	UserRole Role      `json:"role,omitempty"`
	Use      TokenKind `json:"use,omitempty"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// UserID returns the account ID
func (c *JWTClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.Subject()
}

// Role returns the account role
func (c *JWTClaims) Role() string {
	return string(c.UserRole)
}

// HasRole checks if the token was minted for the given role
func (c *JWTClaims) HasRole(role string) bool {
	return c.UserRole != "" && string(c.UserRole) == role
}

// Payload returns the subject and role the token was minted from
func (c *JWTClaims) Payload() TokenPayload {
	return TokenPayload{SubjectID: c.UserID(), Role: c.UserRole}
}

// AccountRef maps the claims back to the account that owns them
func (c *JWTClaims) AccountRef() (AccountRef, error) {
	kind, ok := c.UserRole.Kind()
	if !ok {
		return AccountRef{}, withCause(ErrTokenMalformed, nil, map[string]any{"role": c.UserRole})
	}
	id, err := uuid.Parse(c.UserID())
	if err != nil {
		return AccountRef{}, withCause(ErrTokenMalformed, err, map[string]any{"uid": c.UserID()})
	}
	return AccountRef{Kind: kind, ID: id}, nil
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
