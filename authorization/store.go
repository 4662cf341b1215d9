package authorization

import (
	"context"
	"time"

	"github.com/jrsteele09/go-authserver-security/token"
)

// Store persists authorizations. Every stored token value must resolve to the same
// aggregate as its id.
type Store interface {
	Save(ctx context.Context, a *Authorization) error
	Remove(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*Authorization, error)

	// FindByToken looks an authorization up by one of its token values. An empty kind
	// searches codes, access tokens and refresh tokens.
	FindByToken(ctx context.Context, value string, kind token.Kind) (*Authorization, error)

	// ConsumeAuthorizationCode atomically marks code as used and returns the updated
	// authorization. Only one caller can ever consume a given code; every later caller
	// gets the stored authorization back together with ErrCodeConsumed.
	ConsumeAuthorizationCode(ctx context.Context, code string, now time.Time) (*Authorization, error)

	// Revoke invalidates every token of the authorization and marks its id as revoked.
	// A later Save of that id carrying a live token fails with ErrAuthorizationRevoked.
	Revoke(ctx context.Context, id string) (*Authorization, error)
}

// LookupKinds are the token kinds a store indexes.
var LookupKinds = []token.Kind{token.KindAuthorizationCode, token.KindAccessToken, token.KindRefreshToken}

// ConsumeCode applies code consumption to a loaded authorization. Stores call it while
// holding whatever guarantees their atomicity.
func ConsumeCode(a *Authorization, now time.Time) (*Authorization, error) {
	code, err := a.Token(token.KindAuthorizationCode)
	if err != nil {
		return nil, ErrAuthorizationNotFound
	}
	if code.IsInvalidated() {
		return a, ErrCodeConsumed
	}
	if code.Value().IsExpired(now) {
		return a, ErrCodeExpired
	}
	return a.Invalidate(token.KindAuthorizationCode)
}
