package errors

import (
	"errors"
	"fmt"
)

// Common error types for the OAuth2 client service
var (
	// Session errors
	ErrSessionNotFound     = errors.New("session not found")
	ErrInvalidSessionToken = errors.New("invalid session token")

	// Authorization flow errors
	ErrMissingCode     = errors.New("authorization code missing")
	ErrCodeReused      = errors.New("authorization code already exchanged")
	ErrNoRefreshToken  = errors.New("no refresh token stored")
	ErrSubjectMismatch = errors.New("id token subject does not match profile")

	// Provider errors
	ErrProviderResponse = errors.New("unexpected provider response")
	ErrMissingIDToken   = errors.New("id token missing from token response")

	// General errors
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInternal        = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
