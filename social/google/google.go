// Package google verifies Google Sign-In ID tokens against Google's published
// JWKS and turns them into federated identities.
package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	auth "github.com/safeedu/go-auth"
)

const (
	ProviderName   = "google"
	DefaultJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

// DefaultIssuers are the issuer values Google uses for ID tokens
func DefaultIssuers() []string {
	return []string{"accounts.google.com", "https://accounts.google.com"}
}

// Config holds the verifier settings
type Config struct {
	// ClientIDs lists the OAuth client ids accepted in the aud claim
	ClientIDs []string
	JWKSURL   string
	Issuers   []string
	// HostedDomain restricts sign in to one Google Workspace domain when set
	HostedDomain    string
	HTTPClient      *http.Client
	RefreshInterval time.Duration
	Now             func() time.Time
	Logger          auth.Logger
}

// Claims is the subset of a Google ID token the service reads
type Claims struct {
	jwt.RegisteredClaims
	Email         string   `json:"email"`
	EmailVerified flexBool `json:"email_verified"`
	Name          string   `json:"name"`
	HostedDomain  string   `json:"hd,omitempty"`
	AuthorizedFor string   `json:"azp,omitempty"`
}

// Verifier implements auth.FederatedIdentityVerifier for Google ID tokens
type Verifier struct {
	config Config
	jwks   *keyfunc.JWKS
}

var _ auth.FederatedIdentityVerifier = (*Verifier)(nil)

// New fetches the JWKS and keeps it refreshed in the background. Call Close
// to stop the refresh goroutine.
func New(cfg Config) (*Verifier, error) {
	cfg = withDefaults(cfg)
	if len(cfg.ClientIDs) == 0 {
		return nil, fmt.Errorf("google verifier: at least one client id is required")
	}

	jwks, err := keyfunc.Get(cfg.JWKSURL, keyfunc.Options{
		Client: cfg.HTTPClient,
		RefreshErrorHandler: func(err error) {
			cfg.Logger.Error("google verifier failed to refresh JWKS", "error", err)
		},
		RefreshInterval:   cfg.RefreshInterval,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("google verifier: get JWKS from %s: %w", cfg.JWKSURL, err)
	}

	return &Verifier{config: cfg, jwks: jwks}, nil
}

// NewWithJWKS builds a verifier over an already loaded key set
func NewWithJWKS(cfg Config, jwks *keyfunc.JWKS) *Verifier {
	return &Verifier{config: withDefaults(cfg), jwks: jwks}
}

func withDefaults(cfg Config) Config {
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = DefaultJWKSURL
	}
	if len(cfg.Issuers) == 0 {
		cfg.Issuers = DefaultIssuers()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Hour
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}
	return cfg
}

// Close stops the background JWKS refresh
func (v *Verifier) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}

// Verify checks the signature, issuer, audience and lifetime of an ID token
func (v *Verifier) Verify(ctx context.Context, credential string) (*auth.FederatedIdentity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, invalid(nil, "empty credential")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(credential, claims, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(v.config.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, invalid(err, "id token rejected")
	}

	if !contains(v.config.Issuers, claims.Issuer) {
		return nil, invalid(nil, "unexpected issuer")
	}

	if !v.audienceAllowed(claims.Audience) {
		return nil, invalid(nil, "unexpected audience")
	}

	if v.config.HostedDomain != "" && !strings.EqualFold(claims.HostedDomain, v.config.HostedDomain) {
		return nil, invalid(nil, "unexpected hosted domain")
	}

	if claims.Subject == "" {
		return nil, invalid(nil, "missing subject")
	}

	return &auth.FederatedIdentity{
		Provider:      ProviderName,
		Subject:       claims.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: bool(claims.EmailVerified),
		Name:          claims.Name,
	}, nil
}

func (v *Verifier) audienceAllowed(aud jwt.ClaimStrings) bool {
	for _, a := range aud {
		if contains(v.config.ClientIDs, a) {
			return true
		}
	}
	return false
}

func invalid(cause error, reason string) error {
	err := auth.ErrFederatedIdentity.Clone()
	err.Source = cause
	return err.WithMetadata(map[string]any{
		"provider": ProviderName,
		"reason":   reason,
	})
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

// flexBool accepts both true and "true", Google has sent either over time
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*b = flexBool(v)
		return nil
	}

	var v bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = flexBool(v)
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
