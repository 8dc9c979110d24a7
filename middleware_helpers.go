package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/safeedu/go-auth/middleware/jwtware"
)

// ValidationListener aliases the jwtware listener so consumers can use auth helpers directly.
type ValidationListener = jwtware.ValidationListener

// ContextEnricherAdapter adapts jwtware.AuthClaims to auth.AuthClaims and stores
// the claims in the standard context for downstream usage.
func ContextEnricherAdapter(c context.Context, claims jwtware.AuthClaims) context.Context {
	authClaims, ok := claims.(AuthClaims)
	if !ok {
		return c
	}
	return WithClaimsContext(c, authClaims)
}

// RegisterValidationListeners appends listeners to a jwtware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *jwtware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}

// AccessTokenMiddleware validates access tokens and stores their claims
// under the configured context key. Requests without a token pass through
// so the role gate can decide what anonymous callers may reach.
func AccessTokenMiddleware(cfg Config, validator TokenValidator, errorHandler fiber.ErrorHandler, listeners ...ValidationListener) fiber.Handler {
	mwCfg := jwtware.Config{
		ContextKey:      cfg.GetContextKey(),
		TokenLookup:     cfg.GetTokenLookup(),
		AuthScheme:      cfg.GetAuthScheme(),
		TokenValidator:  jwtwareValidator{validator: validator},
		Optional:        true,
		ErrorHandler:    errorHandler,
		ContextEnricher: ContextEnricherAdapter,
	}
	RegisterValidationListeners(&mwCfg, listeners...)
	return jwtware.New(mwCfg)
}
