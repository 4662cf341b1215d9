package authorization

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/jrsteele09/go-authserver-security/token"
)

var (
	ErrTokenNotFound         = errors.New("token not found on authorization")
	ErrAuthorizationNotFound = errors.New("authorization not found")
	ErrScopeNotAllowed       = errors.New("authorized scopes exceed requested and client scopes")
	ErrMissingPrincipal      = errors.New("principal name is required once an access token is issued")
	ErrRefreshOutlivesAccess = errors.New("refresh token must outlive its access token")
	ErrMissingClient         = errors.New("registered client is required")
	ErrCodeConsumed          = errors.New("authorization code already consumed")
	ErrCodeExpired           = errors.New("authorization code expired")
	ErrAuthorizationRevoked  = errors.New("authorization has been revoked")
)

// State is the lifecycle position of an authorization.
type State string

const (
	StatePending     State = "pending"
	StateCodeIssued  State = "code_issued"
	StateActive      State = "active"
	StateInvalidated State = "invalidated"
	StateExpired     State = "expired"
)

// Terminal reports whether no further tokens may be issued from this state.
func (s State) Terminal() bool {
	return s == StateInvalidated || s == StateExpired
}

// Authorization binds one registered client, one principal, the granted scopes and the
// tokens issued for them. It is never modified in place; every change returns a copy.
type Authorization struct {
	id                 string
	principalName      string
	registeredClientID string
	clientScopes       []string
	grantType          oauth2.GrantType
	authorizedScopes   []string
	tokens             map[token.Kind]*Token
	attributes         map[string]any
}

func (a *Authorization) ID() string                  { return a.id }
func (a *Authorization) PrincipalName() string       { return a.principalName }
func (a *Authorization) RegisteredClientID() string  { return a.registeredClientID }
func (a *Authorization) GrantType() oauth2.GrantType { return a.grantType }

func (a *Authorization) AuthorizedScopes() []string { return slices.Clone(a.authorizedScopes) }

func (a *Authorization) Attribute(name string) (any, bool) {
	v, ok := a.attributes[name]
	return v, ok
}

func (a *Authorization) Attributes() map[string]any { return maps.Clone(a.attributes) }

// Request returns the authorization request snapshot, if one was recorded.
func (a *Authorization) Request() *Request {
	r, _ := a.attributes[AttributeAuthorizationRequest].(*Request)
	return r.clone()
}

// Token returns the token stored for kind, or ErrTokenNotFound.
func (a *Authorization) Token(kind token.Kind) (*Token, error) {
	t, ok := a.tokens[kind]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return t, nil
}

// Tokens returns every stored token keyed by kind.
func (a *Authorization) Tokens() map[token.Kind]*Token { return maps.Clone(a.tokens) }

// AccessToken is a typed convenience over Token(KindAccessToken).
func (a *Authorization) AccessToken() (*token.AccessToken, bool) {
	t, ok := a.tokens[token.KindAccessToken]
	if !ok {
		return nil, false
	}
	at, ok := t.value.(*token.AccessToken)
	return at, ok
}

// WithToken returns a copy holding tok. A token of the same kind is replaced.
func (a *Authorization) WithToken(tok token.Value, mutator MetadataMutator) (*Authorization, error) {
	return a.ToBuilder().Token(tok, mutator).Build()
}

// Invalidate marks the token of kind as invalidated. Invalidating twice is a no-op.
func (a *Authorization) Invalidate(kind token.Kind) (*Authorization, error) {
	t, ok := a.tokens[kind]
	if !ok {
		return nil, ErrTokenNotFound
	}
	if t.IsInvalidated() {
		return a, nil
	}
	c := a.copy()
	c.tokens[kind] = t.invalidated()
	return c, nil
}

// InvalidateAll invalidates every stored token.
func (a *Authorization) InvalidateAll() *Authorization {
	c := a.copy()
	for kind, t := range c.tokens {
		if !t.IsInvalidated() {
			c.tokens[kind] = t.invalidated()
		}
	}
	return c
}

// HasLiveTokens reports whether any token has not been invalidated. Expiry is ignored.
func (a *Authorization) HasLiveTokens() bool {
	for _, t := range a.tokens {
		if !t.IsInvalidated() {
			return true
		}
	}
	return false
}

// State derives the lifecycle position from the stored tokens at now.
func (a *Authorization) State(now time.Time) State {
	access, hasAccess := a.tokens[token.KindAccessToken]
	refresh, hasRefresh := a.tokens[token.KindRefreshToken]
	if hasAccess || hasRefresh {
		if (hasAccess && access.IsActive(now)) || (hasRefresh && refresh.IsActive(now)) {
			return StateActive
		}
		if (hasAccess && access.IsInvalidated()) || (hasRefresh && refresh.IsInvalidated()) {
			return StateInvalidated
		}
		return StateExpired
	}
	if code, ok := a.tokens[token.KindAuthorizationCode]; ok {
		switch {
		case code.IsActive(now):
			return StateCodeIssued
		case code.IsInvalidated():
			return StateInvalidated
		default:
			return StateExpired
		}
	}
	return StatePending
}

// ToBuilder starts a builder pre-populated with this authorization.
func (a *Authorization) ToBuilder() *Builder {
	c := a.copy()
	return &Builder{
		id:                 c.id,
		principalName:      c.principalName,
		registeredClientID: c.registeredClientID,
		clientScopes:       c.clientScopes,
		grantType:          c.grantType,
		authorizedScopes:   c.authorizedScopes,
		tokens:             c.tokens,
		attributes:         c.attributes,
	}
}

func (a *Authorization) copy() *Authorization {
	return &Authorization{
		id:                 a.id,
		principalName:      a.principalName,
		registeredClientID: a.registeredClientID,
		clientScopes:       slices.Clone(a.clientScopes),
		grantType:          a.grantType,
		authorizedScopes:   slices.Clone(a.authorizedScopes),
		tokens:             maps.Clone(a.tokens),
		attributes:         maps.Clone(a.attributes),
	}
}
