package auth

import (
	"context"
	"fmt"
	"strings"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Authenticator holds the session flows for every account kind
type Authenticator interface {
	SignIn(ctx context.Context, id string) (*TokenPair, error)
	SignUpStudent(ctx context.Context, msg SignUpStudentMessage) (*TokenPair, error)
	SignUpCitizen(ctx context.Context, msg SignUpCitizenMessage) (*TokenPair, error)
	FederatedSignInAdmin(ctx context.Context, email string) (*TokenPair, error)
	VerifyOTP(ctx context.Context, code string) error
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	SignOut(ctx context.Context, ref AccountRef) error
}

// Config holds auth options. Key material and expirations are read on
// every issuance so a reloaded configuration applies to the next token.
type Config interface {
	GetAccessTokenPrivateKey() string
	GetRefreshTokenPrivateKey() string
	// GetAccessTokenExpiration returns the access token lifetime in seconds
	GetAccessTokenExpiration() int
	// GetRefreshTokenExpiration returns the refresh token lifetime in seconds
	GetRefreshTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetTokenLookup() string
	GetAuthScheme() string
	GetRefreshTokenHashCost() int
	GetPhoneRegion() string
}

// FederatedIdentity is an identity asserted by an external provider
type FederatedIdentity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// FederatedIdentityVerifier turns a provider credential into an identity
type FederatedIdentityVerifier interface {
	Verify(ctx context.Context, credential string) (*FederatedIdentity, error)
}

// defLogger writes the message followed by its key value pairs to stdout
type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) { fmt.Println(logLine("[ERR]", msg, args)) }
func (d defLogger) Warn(msg string, args ...any)  { fmt.Println(logLine("[WRN]", msg, args)) }
func (d defLogger) Info(msg string, args ...any)  { fmt.Println(logLine("[INF]", msg, args)) }
func (d defLogger) Debug(msg string, args ...any) { fmt.Println(logLine("[DBG]", msg, args)) }

func logLine(level, msg string, args []any) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" AUTH ")
	b.WriteString(strings.TrimRight(msg, "\n"))
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}
