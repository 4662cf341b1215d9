package errors

import (
	"errors"
	"fmt"
)

// Common error types for the authorization server
var (
	// Authentication errors
	ErrBadCredentials    = errors.New("bad credentials")
	ErrAccountDisabled   = errors.New("account disabled")
	ErrProviderNotFound  = errors.New("no authentication provider supports the request")
	ErrNotAuthenticated  = errors.New("full authentication is required")
	ErrAccessDenied      = errors.New("access is denied")
	ErrInsecureTransport = errors.New("secure transport required")

	// Token errors
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")

	// Client errors
	ErrInvalidClient      = errors.New("invalid client")
	ErrInvalidScope       = errors.New("invalid scope")
	ErrInvalidRedirectURI = errors.New("invalid redirect URI")

	// Grant errors
	ErrInvalidGrant         = errors.New("invalid grant")
	ErrUnsupportedGrantType = errors.New("unsupported grant type")
	ErrInvalidRequest       = errors.New("invalid request")

	// General errors
	ErrInternal = errors.New("internal error")
)

// ConfigurationError reports invalid wiring detected while a pipeline is being
// assembled. It is fatal and never retried.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Reason)
}

// Configuration builds a ConfigurationError for the named component.
func Configuration(component, format string, args ...any) error {
	return &ConfigurationError{Component: component, Reason: fmt.Sprintf(format, args...)}
}

// AuthenticationFailure is recovered locally into a challenge response.
type AuthenticationFailure struct {
	Reason string
	Err    error
}

func (e *AuthenticationFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
	}
	return "authentication failed: " + e.Reason
}

func (e *AuthenticationFailure) Unwrap() error { return e.Err }

// AuthenticationFailed wraps err (usually ErrBadCredentials) as an AuthenticationFailure.
func AuthenticationFailed(reason string, err error) error {
	return &AuthenticationFailure{Reason: reason, Err: err}
}

// InvalidGrant is surfaced to the client as an "invalid_grant" protocol error.
type InvalidGrant struct {
	Description string
	Err         error
}

func (e *InvalidGrant) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid grant: %s: %v", e.Description, e.Err)
	}
	return "invalid grant: " + e.Description
}

func (e *InvalidGrant) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidGrant
}

// NewInvalidGrant returns an InvalidGrant carrying the description shown to clients.
func NewInvalidGrant(description string, err error) error {
	return &InvalidGrant{Description: description, Err: err}
}

// TransportPolicyViolation is raised when a request arrives over plain HTTP
// on a pipeline that requires a secure channel.
type TransportPolicyViolation struct {
	Scheme string
	Path   string
}

func (e *TransportPolicyViolation) Error() string {
	return fmt.Sprintf("%s request to %s rejected: %v", e.Scheme, e.Path, ErrInsecureTransport)
}

func (e *TransportPolicyViolation) Unwrap() error { return ErrInsecureTransport }

// IsConfiguration reports whether err is (or wraps) a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// IsAuthenticationFailure reports whether err is (or wraps) an AuthenticationFailure.
func IsAuthenticationFailure(err error) bool {
	var af *AuthenticationFailure
	return errors.As(err, &af)
}

// IsInvalidGrant reports whether err is (or wraps) an InvalidGrant.
func IsInvalidGrant(err error) bool {
	var ig *InvalidGrant
	return errors.As(err, &ig)
}

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
