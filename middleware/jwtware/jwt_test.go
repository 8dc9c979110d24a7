package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeedu/go-auth/middleware/jwtware"
)

type testClaims struct {
	uid  string
	role string
}

func (c testClaims) Subject() string          { return c.uid }
func (c testClaims) UserID() string           { return c.uid }
func (c testClaims) Role() string             { return c.role }
func (c testClaims) HasRole(role string) bool { return c.role == role }

type ctxKey struct{}

func staticValidator(valid string, claims jwtware.AuthClaims) jwtware.TokenValidator {
	return jwtware.TokenValidatorFunc(func(token string) (jwtware.AuthClaims, error) {
		if token != valid {
			return nil, errors.New("token is malformed")
		}
		return claims, nil
	})
}

func newApp(cfg jwtware.Config) *fiber.App {
	app := fiber.New()
	app.Use(jwtware.New(cfg))
	app.Get("/", func(c *fiber.Ctx) error {
		claims, ok := c.Locals("user").(jwtware.AuthClaims)
		if !ok {
			return c.SendString("anonymous")
		}
		return c.SendString(claims.UserID() + ":" + claims.Role())
	})
	return app
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: staticValidator("good-token", testClaims{uid: "u-1", role: "Student"}),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u-1:Student", body(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, jwtware.ErrJWTMissingOrMalformed.Error(), body(t, resp))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestJWTWare_OptionalMode(t *testing.T) {
	app := newApp(jwtware.Config{
		Optional:       true,
		TokenValidator: staticValidator("good-token", testClaims{uid: "u-1", role: "Citizen"}),
	})

	t.Run("missing token proceeds without claims", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "anonymous", body(t, resp))
	})

	t.Run("invalid token is still rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad-token")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("header without scheme is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "good-token")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestJWTWare_CookieAndQueryLookup(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenLookup:    "header:Authorization,cookie:access_token,query:token",
		TokenValidator: staticValidator("good-token", testClaims{uid: "u-2", role: "Admin"}),
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good-token"})
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "u-2:Admin", body(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/?token=good-token", nil))
	require.NoError(t, err)
	assert.Equal(t, "u-2:Admin", body(t, resp))
}

func TestJWTWare_ContextEnricherAndListeners(t *testing.T) {
	var listened []string

	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{
		TokenValidator: staticValidator("good-token", testClaims{uid: "u-3", role: "Student"}),
		ContextEnricher: func(ctx context.Context, claims jwtware.AuthClaims) context.Context {
			return context.WithValue(ctx, ctxKey{}, claims.UserID())
		},
		ValidationListeners: []jwtware.ValidationListener{
			func(c *fiber.Ctx, claims jwtware.AuthClaims) error {
				listened = append(listened, claims.UserID())
				return nil
			},
		},
	}))
	app.Get("/", func(c *fiber.Ctx) error {
		v, _ := c.UserContext().Value(ctxKey{}).(string)
		return c.SendString(v)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "u-3", body(t, resp))
	assert.Equal(t, []string{"u-3"}, listened)
}

func TestJWTWare_ListenerErrorStopsRequest(t *testing.T) {
	app := newApp(jwtware.Config{
		TokenValidator: staticValidator("good-token", testClaims{uid: "u-4", role: "Student"}),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).SendString(err.Error())
		},
		ValidationListeners: []jwtware.ValidationListener{
			func(*fiber.Ctx, jwtware.AuthClaims) error { return errors.New("blocked") },
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "blocked", body(t, resp))
}

func TestJWTWare_RequiresValidator(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.New(jwtware.Config{})
	})
}
