package oauth2

import (
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
)

// OAuth error codes as constants
const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidClient        = "invalid_client"
	ErrorCodeInvalidGrant         = "invalid_grant"
	ErrorCodeInvalidScope         = "invalid_scope"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeUnauthorizedClient   = "unauthorized_client"
	ErrorCodeUnsupportedGrantType = "unsupported_grant_type"
	ErrorCodeUnsupportedResponse  = "unsupported_response_type"
	ErrorCodeAccessDenied         = "access_denied"
	ErrorCodeInsecureTransport    = "insecure_transport"
	ErrorCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrorCodeServerError          = "server_error"
)

// Error is a protocol-level OAuth 2.0 error response.
type Error struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Status      int    `json:"-"`
	Err         error  `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *Error) Unwrap() error { return e.Err }

// WithCause returns a copy of e that wraps err. The cause is never written to the client.
func (e *Error) WithCause(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// NewError creates a new OAuth error
func NewError(code, description string, status int) *Error {
	return &Error{Code: code, Description: description, Status: status}
}

func ErrInvalidRequest(desc string) *Error {
	return NewError(ErrorCodeInvalidRequest, desc, http.StatusBadRequest)
}

func ErrInvalidClient(desc string) *Error {
	return NewError(ErrorCodeInvalidClient, desc, http.StatusUnauthorized)
}

func ErrInvalidGrant(desc string) *Error {
	return NewError(ErrorCodeInvalidGrant, desc, http.StatusBadRequest)
}

func ErrInvalidScope(desc string) *Error {
	return NewError(ErrorCodeInvalidScope, desc, http.StatusBadRequest)
}

func ErrUnauthorizedClient(desc string) *Error {
	return NewError(ErrorCodeUnauthorizedClient, desc, http.StatusBadRequest)
}

func ErrUnsupportedGrantType(desc string) *Error {
	return NewError(ErrorCodeUnsupportedGrantType, desc, http.StatusBadRequest)
}

func ErrUnsupportedResponseType(desc string) *Error {
	return NewError(ErrorCodeUnsupportedResponse, desc, http.StatusBadRequest)
}

// ErrorFrom translates any error raised while serving a request into the
// protocol error written back to the client. Unknown errors become server_error
// without leaking their text.
func ErrorFrom(err error) *Error {
	if err == nil {
		return nil
	}
	var oe *Error
	if apperrors.As(err, &oe) {
		return oe
	}
	var ig *apperrors.InvalidGrant
	if apperrors.As(err, &ig) {
		return ErrInvalidGrant(ig.Description)
	}
	var af *apperrors.AuthenticationFailure
	if apperrors.As(err, &af) {
		return ErrInvalidClient(af.Reason)
	}
	var tv *apperrors.TransportPolicyViolation
	if apperrors.As(err, &tv) {
		return NewError(ErrorCodeInsecureTransport, "secure transport required", http.StatusForbidden)
	}
	switch {
	case apperrors.Is(err, apperrors.ErrAccessDenied):
		return NewError(ErrorCodeAccessDenied, err.Error(), http.StatusForbidden)
	case apperrors.Is(err, apperrors.ErrInvalidScope):
		return ErrInvalidScope(err.Error())
	case apperrors.Is(err, apperrors.ErrUnsupportedGrantType):
		return ErrUnsupportedGrantType(err.Error())
	case apperrors.Is(err, apperrors.ErrInvalidRequest):
		return ErrInvalidRequest(err.Error())
	}
	return NewError(ErrorCodeServerError, "internal server error", http.StatusInternalServerError)
}

// WriteError writes err as an OAuth 2.0 JSON error body.
func WriteError(w http.ResponseWriter, err error) {
	oe := ErrorFrom(err)
	WriteJSON(w, oe.Status, oe)
}
