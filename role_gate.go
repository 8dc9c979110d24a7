package auth

import (
	"reflect"

	"github.com/gofiber/fiber/v2"
)

// Authorize decides whether claims satisfy a declared role set. An empty set
// allows everyone, anonymous callers included.
func Authorize(claims AuthClaims, required ...Role) error {
	if len(required) == 0 {
		return nil
	}

	if isNilClaims(claims) || claims.UserID() == "" {
		return ErrAuthenticationRequired
	}

	role := Role(claims.Role())
	for _, r := range required {
		if r == role {
			return nil
		}
	}

	return withCause(ErrInsufficientRole, nil, map[string]any{
		"role":     string(role),
		"required": required,
	})
}

// RoleGate enforces per route role declarations on fiber handlers
type RoleGate struct {
	ContextKey string
	Logger     Logger
}

func NewRoleGate(contextKey string) RoleGate {
	return RoleGate{ContextKey: contextKey, Logger: defLogger{}}
}

// Require returns a handler that lets the request through only when the
// caller role is one of roles. With no roles every request passes.
func (g RoleGate) Require(roles ...Role) fiber.Handler {
	declared := append([]Role(nil), roles...)
	return func(c *fiber.Ctx) error {
		claims, _ := GetFiberClaims(c, g.ContextKey)
		if err := Authorize(claims, declared...); err != nil {
			if g.Logger != nil {
				g.Logger.Debug("RoleGate denied request", "path", c.Path(), "error", err)
			}
			return err
		}
		return c.Next()
	}
}

func isNilClaims(claims AuthClaims) bool {
	if claims == nil {
		return true
	}
	v := reflect.ValueOf(claims)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
