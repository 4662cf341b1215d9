package authn

import (
	"context"
	"slices"
)

// Kind tags the credential shape of an authentication attempt so providers can
// declare what they support.
type Kind string

const KindUsernamePassword Kind = "username_password"

// Authentication is either an unauthenticated attempt (principal plus credentials)
// or the authenticated result returned by a provider.
type Authentication struct {
	Kind          Kind
	Principal     string
	Credentials   string
	Authorities   []string
	Authenticated bool
	Details       map[string]any
}

// UsernamePassword builds an unauthenticated credential attempt.
func UsernamePassword(principal, credentials string) *Authentication {
	return &Authentication{
		Kind:        KindUsernamePassword,
		Principal:   principal,
		Credentials: credentials,
	}
}

func (a *Authentication) Name() string {
	if a == nil {
		return ""
	}
	return a.Principal
}

func (a *Authentication) HasAuthority(authority string) bool {
	return a != nil && slices.Contains(a.Authorities, authority)
}

// authenticated returns the successful form of the attempt with credentials erased.
func (a *Authentication) authenticated(authorities []string) *Authentication {
	return &Authentication{
		Kind:          a.Kind,
		Principal:     a.Principal,
		Authorities:   slices.Clone(authorities),
		Authenticated: true,
		Details:       a.Details,
	}
}

type contextKey struct{}

// WithAuthentication stores an authenticated principal on the request context.
func WithAuthentication(ctx context.Context, a *Authentication) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// AuthenticationFrom returns the authenticated principal of the request, if any.
func AuthenticationFrom(ctx context.Context) (*Authentication, bool) {
	a, ok := ctx.Value(contextKey{}).(*Authentication)
	if !ok || a == nil || !a.Authenticated {
		return nil, false
	}
	return a, true
}
