package auth

import (
	"crypto/rsa"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/oklog/ulid/v2"
)

// TokenPayload is the identity embedded in both tokens of a pair
type TokenPayload struct {
	SubjectID string
	Role      Role
}

// TokenPair is the result of every successful session operation
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// TokenService mints and validates the access and refresh tokens. Access and
// refresh tokens use independent RS256 keys and expirations.
type TokenService interface {
	IssueAccess(payload TokenPayload) (string, error)
	IssueRefresh(payload TokenPayload) (string, error)
	IssuePair(payload TokenPayload) (*TokenPair, error)
	ValidateAccess(tokenString string) (*JWTClaims, error)
	ValidateRefresh(tokenString string) (*JWTClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	config      Config
	logger      Logger
	now         func() time.Time
	accessKeys  *signingKeyCache
	refreshKeys *signingKeyCache
}

// NewTokenService creates a new TokenService instance
func NewTokenService(config Config, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		config:      config,
		logger:      logger,
		now:         time.Now,
		accessKeys:  &signingKeyCache{},
		refreshKeys: &signingKeyCache{},
	}
}

// WithClock overrides the time source used to stamp tokens
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

func (ts *TokenServiceImpl) IssueAccess(payload TokenPayload) (string, error) {
	return ts.issue(TokenAccess, payload)
}

func (ts *TokenServiceImpl) IssueRefresh(payload TokenPayload) (string, error) {
	return ts.issue(TokenRefresh, payload)
}

// IssuePair mints both tokens for the same payload. Either both are
// returned or neither is.
func (ts *TokenServiceImpl) IssuePair(payload TokenPayload) (*TokenPair, error) {
	access, err := ts.IssueAccess(payload)
	if err != nil {
		return nil, err
	}

	refresh, err := ts.IssueRefresh(payload)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func (ts *TokenServiceImpl) ValidateAccess(tokenString string) (*JWTClaims, error) {
	return ts.validate(TokenAccess, tokenString)
}

func (ts *TokenServiceImpl) ValidateRefresh(tokenString string) (*JWTClaims, error) {
	return ts.validate(TokenRefresh, tokenString)
}

func (ts *TokenServiceImpl) issue(kind TokenKind, payload TokenPayload) (string, error) {
	if !payload.Role.IsValid() {
		return "", withCause(ErrInvalidRole, nil, map[string]any{"role": payload.Role})
	}
	if strings.TrimSpace(payload.SubjectID) == "" {
		return "", withCause(ErrTokenProcessing, nil, map[string]any{"reason": "empty subject"})
	}

	key, ttl, err := ts.material(kind)
	if err != nil {
		return "", err
	}

	now := ts.now()
	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    ts.config.GetIssuer(),
			Subject:   payload.SubjectID,
			Audience:  jwt.ClaimStrings(ts.config.GetAudience()),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      payload.SubjectID,
		UserRole: payload.Role,
		Use:      kind,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	if err != nil {
		ts.logger.Error("TokenService failed to sign token", "kind", kind, "error", err)
		return "", withCause(ErrTokenProcessing, err, map[string]any{"kind": string(kind)})
	}

	return signed, nil
}

func (ts *TokenServiceImpl) validate(kind TokenKind, tokenString string) (*JWTClaims, error) {
	key, _, err := ts.material(kind)
	if err != nil {
		return nil, err
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
	}
	if issuer := ts.config.GetIssuer(); issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(issuer))
	}
	// minted tokens carry every configured audience, the primary one is required
	if audience := ts.config.GetAudience(); len(audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			ts.logger.Error("TokenService validate encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return &key.PublicKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, withCause(ErrTokenExpired, err, nil)
		}
		return nil, withCause(ErrTokenMalformed, err, nil)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService validate could not decode or validate claims")
		return nil, withCause(ErrTokenMalformed, nil, nil)
	}

	if claims.Use != kind {
		return nil, withCause(ErrTokenMalformed, nil, map[string]any{
			"expected_use": string(kind),
			"use":          string(claims.Use),
		})
	}

	if !claims.UserRole.IsValid() {
		return nil, withCause(ErrTokenMalformed, nil, map[string]any{"role": claims.UserRole})
	}

	return claims, nil
}

// material reads the key and lifetime for a token kind from the current
// configuration snapshot
func (ts *TokenServiceImpl) material(kind TokenKind) (*rsa.PrivateKey, time.Duration, error) {
	var (
		pem   string
		secs  int
		cache *signingKeyCache
	)

	switch kind {
	case TokenAccess:
		pem, secs, cache = ts.config.GetAccessTokenPrivateKey(), ts.config.GetAccessTokenExpiration(), ts.accessKeys
	case TokenRefresh:
		pem, secs, cache = ts.config.GetRefreshTokenPrivateKey(), ts.config.GetRefreshTokenExpiration(), ts.refreshKeys
	default:
		return nil, 0, withCause(ErrTokenProcessing, nil, map[string]any{"kind": string(kind)})
	}

	if secs <= 0 {
		return nil, 0, withCause(ErrTokenProcessing, nil, map[string]any{
			"kind":   string(kind),
			"reason": "expiration must be positive",
		})
	}

	key, err := cache.load(pem)
	if err != nil {
		ts.logger.Error("TokenService failed to load signing key", "kind", kind, "error", err)
		return nil, 0, withCause(ErrTokenProcessing, err, map[string]any{"kind": string(kind)})
	}

	return key, time.Duration(secs) * time.Second, nil
}

// AccessTokenValidator exposes access token validation as a TokenValidator
func (ts *TokenServiceImpl) AccessTokenValidator() TokenValidator {
	return TokenValidatorFunc(func(tokenString string) (AuthClaims, error) {
		claims, err := ts.ValidateAccess(tokenString)
		if err != nil {
			return nil, err
		}
		return claims, nil
	})
}

// signingKeyCache keeps the parsed key for the last seen PEM block
type signingKeyCache struct {
	mu  sync.Mutex
	pem string
	key *rsa.PrivateKey
}

func (c *signingKeyCache) load(pem string) (*rsa.PrivateKey, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.key != nil && c.pem == pem {
		return c.key, nil
	}

	if strings.TrimSpace(pem) == "" {
		return nil, errors.New("signing key is not configured", errors.CategoryInternal)
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, err
	}

	c.pem = pem
	c.key = key
	return key, nil
}
