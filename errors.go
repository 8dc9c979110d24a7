package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeAccountNotFound        = "ACCOUNT_NOT_FOUND"
	TextCodeAdminNotRegistered     = "ADMIN_NOT_REGISTERED"
	TextCodePhoneNumberExists      = "PHONE_NUMBER_EXISTS"
	TextCodeInvalidPhoneNumber     = "INVALID_PHONE_NUMBER"
	TextCodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	TextCodeInsufficientRole       = "INSUFFICIENT_ROLE"
	TextCodeInvalidOTP             = "INVALID_OTP"
	TextCodeInvalidRefreshToken    = "INVALID_REFRESH_TOKEN"
	TextCodeTokenExpired           = "TOKEN_EXPIRED"
	TextCodeTokenMalformed         = "TOKEN_MALFORMED"
	TextCodeTokenProcessing        = "TOKEN_PROCESSING_FAILED"
	TextCodeInvalidRole            = "INVALID_ROLE"
	TextCodeInvalidPayload         = "INVALID_PAYLOAD"
	TextCodeEmptyToken             = "EMPTY_TOKEN"
	TextCodeFederatedIdentity      = "FEDERATED_IDENTITY_INVALID"
)

// ErrAccountNotFound is returned when no account store owns an identifier
var ErrAccountNotFound = errors.New("account not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrAdminNotRegistered is returned by federated sign-in for unknown emails
var ErrAdminNotRegistered = errors.New("no administrator is registered for this email", errors.CategoryNotFound).
	WithTextCode(TextCodeAdminNotRegistered).
	WithCode(errors.CodeNotFound)

// ErrPhoneNumberExists is returned when a phone number is already taken by a
// student or a citizen
var ErrPhoneNumberExists = errors.New("phone number already exists", errors.CategoryConflict).
	WithTextCode(TextCodePhoneNumberExists).
	WithCode(errors.CodeConflict)

var ErrInvalidPhoneNumber = errors.New("phone number is not valid", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidPhoneNumber).
	WithCode(errors.CodeBadRequest)

// ErrAuthenticationRequired is returned by the role gate when a route declares
// roles but the request carries no identity
var ErrAuthenticationRequired = errors.New("access denied: no user provided", errors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationRequired).
	WithCode(errors.CodeUnauthorized)

// ErrInsufficientRole is returned by the role gate when the caller role is not
// part of the declared set
var ErrInsufficientRole = errors.New("access denied: insufficient role", errors.CategoryAuthz).
	WithTextCode(TextCodeInsufficientRole).
	WithCode(errors.CodeForbidden)

var ErrInvalidOTP = errors.New("invalid OTP", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidOTP).
	WithCode(errors.CodeBadRequest)

var ErrInvalidRefreshToken = errors.New("refresh token is not valid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidRefreshToken).
	WithCode(errors.CodeUnauthorized)

var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenProcessing is returned when tokens could not be minted or their hash
// could not be stored. The original failure is kept as the error source.
var ErrTokenProcessing = errors.New("an error occurred while processing tokens", errors.CategoryInternal).
	WithTextCode(TextCodeTokenProcessing).
	WithCode(errors.CodeInternal)

var ErrInvalidRole = errors.New("role is not part of the role enumeration", errors.CategoryInternal).
	WithTextCode(TextCodeInvalidRole).
	WithCode(errors.CodeInternal)

var ErrInvalidPayload = errors.New("invalid request payload", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidPayload).
	WithCode(errors.CodeBadRequest)

// ErrFederatedIdentity is returned when a provider credential can not be
// verified or does not carry a verified email
var ErrFederatedIdentity = errors.New("federated identity could not be verified", errors.CategoryAuth).
	WithTextCode(TextCodeFederatedIdentity).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty token
var ErrNoEmptyString = errors.New("token must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyToken).
	WithCode(errors.CodeBadRequest)

// withCause returns a copy of base that carries cause as its source and the
// given metadata. Sentinels are never mutated.
func withCause(base *errors.Error, cause error, meta map[string]any) *errors.Error {
	clone := base.Clone()
	if clone == nil {
		return base
	}
	if cause != nil {
		clone.Source = cause
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}

// HasTextCode reports whether err carries a rich error with the given text code
func HasTextCode(err error, textCode string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if HasTextCode(err, TextCodeTokenMalformed) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
