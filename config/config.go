// Package config loads the auth service settings with koanf. Values are
// layered defaults, YAML file, SAFEEDU_ environment variables and command
// line flags, in that order. The resolved snapshot can be swapped at runtime
// so key material and token lifetimes apply to the next issued token.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	auth "github.com/safeedu/go-auth"
)

// EnvPrefix is stripped from environment variables before they are mapped to keys
const EnvPrefix = "SAFEEDU_"

const delim = "."

var sections = []string{"jwt", "auth", "http", "database", "mail", "google", "metrics"}

// Settings is one resolved configuration snapshot
type Settings struct {
	AccessTokenPrivateKey  string
	RefreshTokenPrivateKey string
	AccessTokenExpiration  int
	RefreshTokenExpiration int
	Issuer                 string
	Audience               []string
	ContextKey             string
	TokenLookup            string
	AuthScheme             string

	RefreshTokenHashCost int
	PhoneRegion          string
	OTPCode              string

	HTTPAddress string
	RateLimit   float64
	RateBurst   int

	DatabaseDSN string

	SMTPAddr     string
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	GoogleClientIDs []string
	GoogleJWKSURL   string

	MetricsEnabled bool
	MetricsPath    string
}

// Defaults returns the built in values used when nothing else is set
func Defaults() map[string]any {
	return map[string]any{
		"jwt.access_token_expiration_time":  900,
		"jwt.refresh_token_expiration_time": 604800,
		"jwt.issuer":                        "safeedu-auth",
		"jwt.context_key":                   "user",
		"jwt.token_lookup":                  "header:Authorization",
		"jwt.auth_scheme":                   "Bearer",
		"auth.refresh_token_hash_cost":      auth.DefaultRefreshTokenHashCost,
		"auth.phone_region":                 auth.DefaultPhoneRegion,
		"auth.otp_code":                     auth.DefaultOTPCode,
		"http.address":                      ":8080",
		"http.rate_limit":                   5.0,
		"http.rate_burst":                   10,
		"database.dsn":                      "file:safeedu-auth.db?cache=shared",
		"google.jwks_url":                   "https://www.googleapis.com/oauth2/v3/certs",
		"metrics.enabled":                   true,
		"metrics.path":                      "/metrics",
	}
}

// Provider implements auth.Config on top of an atomically swapped snapshot
type Provider struct {
	path   string
	flags  *pflag.FlagSet
	logger auth.Logger

	current atomic.Pointer[Settings]

	mu      sync.Mutex
	watcher *file.File
}

var _ auth.Config = (*Provider)(nil)

// Option configures a Provider
type Option func(*Provider)

// WithFile sets the YAML file to read. Missing path means no file layer.
func WithFile(path string) Option {
	return func(p *Provider) {
		p.path = path
	}
}

// WithFlags overlays flags that were explicitly set on the command line
func WithFlags(fs *pflag.FlagSet) Option {
	return func(p *Provider) {
		p.flags = fs
	}
}

func WithLogger(logger auth.Logger) Option {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New loads the configuration and returns a ready Provider
func New(opts ...Option) (*Provider, error) {
	p := &Provider{logger: nopLogger{}}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload reads every layer again and swaps the snapshot. The previous
// snapshot stays active when loading fails.
func (p *Provider) Reload() error {
	k := koanf.New(delim)

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return fmt.Errorf("config default %s: %w", key, err)
		}
	}

	if p.path != "" {
		if err := k.Load(file.Provider(p.path), yaml.Parser()); err != nil {
			return fmt.Errorf("config file %s: %w", p.path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, delim, EnvKey), nil); err != nil {
		return fmt.Errorf("config env: %w", err)
	}

	if p.flags != nil {
		provider := posflag.ProviderWithFlag(p.flags, delim, k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(p.flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return fmt.Errorf("config flags: %w", err)
		}
	}

	settings, err := resolve(k)
	if err != nil {
		return err
	}

	p.current.Store(settings)
	return nil
}

// Watch reloads the snapshot every time the config file changes
func (p *Provider) Watch() error {
	if p.path == "" {
		return fmt.Errorf("config watch: no file configured")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher != nil {
		return nil
	}

	w := file.Provider(p.path)
	err := w.Watch(func(event any, err error) {
		if err != nil {
			p.logger.Error("config watch error", "error", err)
			return
		}
		if err := p.Reload(); err != nil {
			p.logger.Error("config reload failed, keeping previous settings", "error", err)
			return
		}
		p.logger.Info("config reloaded", "path", p.path)
	})
	if err != nil {
		return err
	}

	p.watcher = w
	return nil
}

// Close stops watching the config file
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Unwatch()
	p.watcher = nil
	return err
}

// Settings returns a copy of the active snapshot
func (p *Provider) Settings() Settings {
	s := *p.current.Load()
	s.Audience = append([]string(nil), s.Audience...)
	s.GoogleClientIDs = append([]string(nil), s.GoogleClientIDs...)
	return s
}

func (p *Provider) GetAccessTokenPrivateKey() string {
	return p.current.Load().AccessTokenPrivateKey
}

func (p *Provider) GetRefreshTokenPrivateKey() string {
	return p.current.Load().RefreshTokenPrivateKey
}

func (p *Provider) GetAccessTokenExpiration() int {
	return p.current.Load().AccessTokenExpiration
}

func (p *Provider) GetRefreshTokenExpiration() int {
	return p.current.Load().RefreshTokenExpiration
}

func (p *Provider) GetIssuer() string {
	return p.current.Load().Issuer
}

func (p *Provider) GetAudience() []string {
	return append([]string(nil), p.current.Load().Audience...)
}

func (p *Provider) GetContextKey() string {
	return p.current.Load().ContextKey
}

func (p *Provider) GetTokenLookup() string {
	return p.current.Load().TokenLookup
}

func (p *Provider) GetAuthScheme() string {
	return p.current.Load().AuthScheme
}

func (p *Provider) GetRefreshTokenHashCost() int {
	return p.current.Load().RefreshTokenHashCost
}

func (p *Provider) GetPhoneRegion() string {
	return p.current.Load().PhoneRegion
}

// EnvKey maps SAFEEDU_JWT_ISSUER to jwt.issuer
func EnvKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	for _, section := range sections {
		if strings.HasPrefix(key, section+"_") {
			return section + delim + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

func resolve(k *koanf.Koanf) (*Settings, error) {
	accessKey, err := keyMaterial(k, "jwt.access_token_private_key")
	if err != nil {
		return nil, err
	}
	refreshKey, err := keyMaterial(k, "jwt.refresh_token_private_key")
	if err != nil {
		return nil, err
	}

	s := &Settings{
		AccessTokenPrivateKey:  accessKey,
		RefreshTokenPrivateKey: refreshKey,
		AccessTokenExpiration:  k.Int("jwt.access_token_expiration_time"),
		RefreshTokenExpiration: k.Int("jwt.refresh_token_expiration_time"),
		Issuer:                 k.String("jwt.issuer"),
		Audience:               list(k, "jwt.audience"),
		ContextKey:             k.String("jwt.context_key"),
		TokenLookup:            k.String("jwt.token_lookup"),
		AuthScheme:             k.String("jwt.auth_scheme"),
		RefreshTokenHashCost:   k.Int("auth.refresh_token_hash_cost"),
		PhoneRegion:            strings.ToUpper(k.String("auth.phone_region")),
		OTPCode:                k.String("auth.otp_code"),
		HTTPAddress:            k.String("http.address"),
		RateLimit:              k.Float64("http.rate_limit"),
		RateBurst:              k.Int("http.rate_burst"),
		DatabaseDSN:            k.String("database.dsn"),
		SMTPAddr:               k.String("mail.smtp_addr"),
		SMTPUsername:           k.String("mail.smtp_username"),
		SMTPPassword:           k.String("mail.smtp_password"),
		MailFrom:               k.String("mail.from"),
		GoogleClientIDs:        list(k, "google.client_ids"),
		GoogleJWKSURL:          k.String("google.jwks_url"),
		MetricsEnabled:         k.Bool("metrics.enabled"),
		MetricsPath:            k.String("metrics.path"),
	}

	if s.AccessTokenExpiration <= 0 {
		return nil, fmt.Errorf("jwt.access_token_expiration_time must be positive, got %d", s.AccessTokenExpiration)
	}
	if s.RefreshTokenExpiration <= 0 {
		return nil, fmt.Errorf("jwt.refresh_token_expiration_time must be positive, got %d", s.RefreshTokenExpiration)
	}

	return s, nil
}

// keyMaterial reads an inline PEM value, falling back to <key>_file
func keyMaterial(k *koanf.Koanf, key string) (string, error) {
	if path := k.String(key + "_file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s_file: %w", key, err)
		}
		return normalizePEM(string(data)), nil
	}
	return normalizePEM(k.String(key)), nil
}

// normalizePEM accepts PEM blocks whose newlines were escaped to fit a
// single environment variable
func normalizePEM(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, "\\n") && !strings.Contains(value, "\n") {
		value = strings.ReplaceAll(value, "\\n", "\n")
	}
	return value
}

// list accepts both YAML sequences and comma separated strings
func list(k *koanf.Koanf, key string) []string {
	if values := k.Strings(key); len(values) > 0 {
		return compact(values)
	}
	raw := k.String(key)
	if raw == "" {
		return nil
	}
	return compact(strings.Split(raw, ","))
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
