package auth

import "errors"

var (
	ErrMissingRepo           = errors.New("repository is required")
	ErrInvalidTokenSettings  = errors.New("refresh tokens must outlive access tokens")
	ErrPasswordGrantDisabled = errors.New("password grant requires a user repository")
	ErrTokenKeyUnavailable   = errors.New("access tokens are not signed")
	ErrUnauthenticatedClient = errors.New("client is not authenticated")
	ErrUnauthenticatedUser   = errors.New("resource owner is not authenticated")
	ErrTokenIssuedToAnother  = errors.New("token was issued to another client")
)
