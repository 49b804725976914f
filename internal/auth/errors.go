package auth

import (
	"errors"
	"fmt"
)

// Code classifies an AuthError.
type Code string

const (
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeNoUser             Code = "no_user"
	CodeUnsupportedInDemo  Code = "unsupported_in_demo_mode"
	CodeNetwork            Code = "network"
	CodeUnknown            Code = "unknown"
)

// AuthError is the only error type the auth backends let cross their
// boundary; remote store failures are normalized into it.
type AuthError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError builds an AuthError wrapping an optional cause.
func NewAuthError(code Code, message string, cause error) *AuthError {
	return &AuthError{Code: code, Message: message, Err: cause}
}

// AsAuthError extracts an AuthError from an error chain.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
