package auth

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
)

type AuthControllerRoutes struct {
	SignIn        string
	SignUpStudent string
	SignUpCitizen string
	Google        string
	VerifyOTP     string
	Refresh       string
	SignOut       string
	Me            string
}

type AuthController struct {
	Debug      bool
	Logger     Logger
	Auther     *Auther
	Gate       RoleGate
	Routes     *AuthControllerRoutes
	Protect    fiber.Handler
	RateLimit  fiber.Handler
	ContextKey string
}

type AuthControllerOption func(*AuthController) *AuthController

// WithRateLimit guards the public routes with limiter
func WithRateLimit(limiter fiber.Handler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.RateLimit = limiter
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
			c.Gate.Logger = logger
		}
		return c
	}
}

func WithControllerRoutes(routes *AuthControllerRoutes) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithDebug(debug bool) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Debug = debug
		return c
	}
}

// NewAuthController wires the HTTP surface of the service. Protected routes
// run behind the access token middleware and the role gate.
func NewAuthController(auther *Auther, cfg Config, opts ...AuthControllerOption) *AuthController {
	if auther == nil {
		panic("Missing Auther in auth controller...")
	}

	c := &AuthController{
		Logger:     defLogger{},
		Auther:     auther,
		ContextKey: cfg.GetContextKey(),
		Gate:       NewRoleGate(cfg.GetContextKey()),
		Routes: &AuthControllerRoutes{
			SignIn:        "/auth/sign-in",
			SignUpStudent: "/auth/sign-up/student",
			SignUpCitizen: "/auth/sign-up/citizen",
			Google:        "/auth/google",
			VerifyOTP:     "/auth/verify-otp",
			Refresh:       "/auth/refresh",
			SignOut:       "/auth/sign-out",
			Me:            "/auth/me",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	validator := TokenValidator(nil)
	if ts, ok := auther.TokenService().(*TokenServiceImpl); ok {
		validator = ts.AccessTokenValidator()
	} else {
		validator = TokenValidatorFunc(func(token string) (AuthClaims, error) {
			claims, err := auther.TokenService().ValidateAccess(token)
			if err != nil {
				return nil, err
			}
			return claims, nil
		})
	}

	c.Protect = AccessTokenMiddleware(cfg, validator, NewErrorHandler(c.Logger))

	return c
}

// Register mounts the auth routes on router
func (a *AuthController) Register(router fiber.Router) {
	public := []fiber.Handler{}
	if a.RateLimit != nil {
		public = append(public, a.RateLimit)
	}

	router.Post(a.Routes.SignIn, append(public, a.SignIn)...)
	router.Post(a.Routes.SignUpStudent, append(public, a.SignUpStudent)...)
	router.Post(a.Routes.SignUpCitizen, append(public, a.SignUpCitizen)...)
	router.Post(a.Routes.Google, append(public, a.GoogleSignIn)...)
	router.Post(a.Routes.VerifyOTP, append(public, a.VerifyOTP)...)
	router.Post(a.Routes.Refresh, append(public, a.Refresh)...)

	router.Post(a.Routes.SignOut, a.Protect, a.Gate.Require(GetAllRoles()...), a.SignOut)
	router.Get(a.Routes.Me, a.Protect, a.Gate.Require(GetAllRoles()...), a.Me)
}

type SignInPayload struct {
	ID string `json:"id"`
}

func (r SignInPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ID, validation.Required, validation.Length(1, 64)),
	)
}

type GoogleSignInPayload struct {
	IDToken string `json:"id_token" mask:"filled32"`
}

func (r GoogleSignInPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDToken, validation.Required),
	)
}

type VerifyOTPPayload struct {
	OTP string `json:"otp"`
}

func (r VerifyOTPPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.OTP, validation.Required, validation.Length(4, 12)),
	)
}

type RefreshPayload struct {
	RefreshToken string `json:"refreshToken" mask:"filled32"`
}

func (r RefreshPayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

type validatable interface {
	Validate() error
}

// debugPayload masks fields tagged with mask, credentials never reach the output
func debugPayload(payload validatable) string {
	return print.MaybeSecureJSON(payload)
}

func (a *AuthController) bind(c *fiber.Ctx, payload validatable) error {
	if err := c.BodyParser(payload); err != nil {
		return withCause(ErrInvalidPayload, err, nil)
	}

	if err := payload.Validate(); err != nil {
		return withCause(ErrInvalidPayload, err, map[string]any{"validation": err.Error()})
	}

	if a.Debug {
		fmt.Println("======= AUTH PAYLOAD ======")
		fmt.Println(debugPayload(payload))
		fmt.Println("===========================")
	}

	return nil
}

func (a *AuthController) SignIn(c *fiber.Ctx) error {
	payload := new(SignInPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	pair, err := a.Auther.SignIn(c.UserContext(), strings.TrimSpace(payload.ID))
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (a *AuthController) SignUpStudent(c *fiber.Ctx) error {
	payload := new(SignUpStudentMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	pair, err := a.Auther.SignUpStudent(c.UserContext(), *payload)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(pair)
}

func (a *AuthController) SignUpCitizen(c *fiber.Ctx) error {
	payload := new(SignUpCitizenMessage)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	pair, err := a.Auther.SignUpCitizen(c.UserContext(), *payload)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(pair)
}

func (a *AuthController) GoogleSignIn(c *fiber.Ctx) error {
	payload := new(GoogleSignInPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	pair, err := a.Auther.FederatedSignIn(c.UserContext(), payload.IDToken)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (a *AuthController) VerifyOTP(c *fiber.Ctx) error {
	payload := new(VerifyOTPPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	if err := a.Auther.VerifyOTP(c.UserContext(), payload.OTP); err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"verified": true})
}

func (a *AuthController) Refresh(c *fiber.Ctx) error {
	payload := new(RefreshPayload)
	if err := a.bind(c, payload); err != nil {
		return err
	}

	pair, err := a.Auther.Refresh(c.UserContext(), payload.RefreshToken)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(pair)
}

func (a *AuthController) SignOut(c *fiber.Ctx) error {
	claims, _ := GetFiberClaims(c, a.ContextKey)
	ref, err := AccountRefFromClaims(claims)
	if err != nil {
		return err
	}

	if err := a.Auther.SignOut(c.UserContext(), ref); err != nil {
		return err
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// MeResponse describes the caller as seen by the token
type MeResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expiresAt"`
}

func (a *AuthController) Me(c *fiber.Ctx) error {
	claims, ok := GetFiberClaims(c, a.ContextKey)
	if !ok {
		return ErrAuthenticationRequired
	}

	return c.JSON(MeResponse{
		ID:        claims.UserID(),
		Role:      claims.Role(),
		ExpiresAt: claims.Expires().Unix(),
	})
}
