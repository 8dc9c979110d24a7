package auth

import (
	"context"
	"crypto/subtle"
	"strings"
)

// DefaultOTPCode is the fixed code accepted until an SMS gateway is wired
const DefaultOTPCode = "000000"

// OTPVerifier checks one time passwords
type OTPVerifier interface {
	VerifyOTP(ctx context.Context, code string) error
}

// OTPVerifierFunc adapts a function to the OTPVerifier interface
type OTPVerifierFunc func(ctx context.Context, code string) error

func (f OTPVerifierFunc) VerifyOTP(ctx context.Context, code string) error {
	if f == nil {
		return ErrInvalidOTP
	}
	return f(ctx, code)
}

// StaticOTPVerifier accepts a single configured code
type StaticOTPVerifier struct {
	Code string
}

func NewStaticOTPVerifier(code string) StaticOTPVerifier {
	if code == "" {
		code = DefaultOTPCode
	}
	return StaticOTPVerifier{Code: code}
}

func (v StaticOTPVerifier) VerifyOTP(_ context.Context, code string) error {
	expected := v.Code
	if expected == "" {
		expected = DefaultOTPCode
	}

	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(code)), []byte(expected)) != 1 {
		return ErrInvalidOTP
	}
	return nil
}
