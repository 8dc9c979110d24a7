package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// GetFiberClaims extracts the AuthClaims stored by the JWT middleware
func GetFiberClaims(c *fiber.Ctx, key string) (AuthClaims, bool) {
	if key == "" {
		key = "user" // Default key used by JWT middleware
	}
	raw := c.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}

// AccountRefFromClaims maps validated claims back to an account reference
func AccountRefFromClaims(claims AuthClaims) (AccountRef, error) {
	if isNilClaims(claims) {
		return AccountRef{}, ErrAuthenticationRequired
	}
	if jwtClaims, ok := claims.(*JWTClaims); ok {
		return jwtClaims.AccountRef()
	}
	return (&JWTClaims{UID: claims.UserID(), UserRole: Role(claims.Role())}).AccountRef()
}
