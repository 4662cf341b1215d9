package token

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Kind identifies which slot of an authorization a token occupies.
type Kind string

const (
	KindAuthorizationCode Kind = "authorization_code"
	KindAccessToken       Kind = "access_token"
	KindRefreshToken      Kind = "refresh_token"
)

// Type is the access token type. Only bearer tokens are issued.
type Type string

const TypeBearer Type = "bearer"

var (
	ErrInvalidTokenWindow   = errors.New("token expiry must be after its issue time")
	ErrEmptyTokenValue      = errors.New("token value is required")
	ErrUnsupportedTokenType = errors.New("unsupported access token type")
	ErrUnknownKind          = errors.New("unknown token kind")
)

// Value is the common read-only view of every token kind.
type Value interface {
	Kind() Kind
	Value() string
	IssuedAt() time.Time
	ExpiresAt() time.Time
	IsExpired(now time.Time) bool
}

type base struct {
	value     string
	issuedAt  time.Time
	expiresAt time.Time
}

func newBase(value string, issuedAt, expiresAt time.Time) (base, error) {
	if strings.TrimSpace(value) == "" {
		return base{}, ErrEmptyTokenValue
	}
	if !expiresAt.After(issuedAt) {
		return base{}, fmt.Errorf("%w: issued %s, expires %s", ErrInvalidTokenWindow,
			issuedAt.Format(time.RFC3339), expiresAt.Format(time.RFC3339))
	}
	return base{value: value, issuedAt: issuedAt, expiresAt: expiresAt}, nil
}

func (b base) Value() string        { return b.value }
func (b base) IssuedAt() time.Time  { return b.issuedAt }
func (b base) ExpiresAt() time.Time { return b.expiresAt }

// IsExpired is true iff now >= expiresAt. Once true it stays true for any later now.
func (b base) IsExpired(now time.Time) bool {
	return !now.Before(b.expiresAt)
}

// ExpiresIn returns the whole seconds left before expiry, never negative.
func ExpiresIn(v Value, now time.Time) int64 {
	d := v.ExpiresAt().Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// AuthorizationCode is single use; consumption is enforced by the authorization store.
type AuthorizationCode struct{ base }

func NewAuthorizationCode(value string, issuedAt, expiresAt time.Time) (*AuthorizationCode, error) {
	b, err := newBase(value, issuedAt, expiresAt)
	if err != nil {
		return nil, err
	}
	return &AuthorizationCode{base: b}, nil
}

func (*AuthorizationCode) Kind() Kind { return KindAuthorizationCode }

// AccessToken carries its token type and the scopes it was issued for.
type AccessToken struct {
	base
	tokenType Type
	scopes    []string
}

func NewAccessToken(tokenType Type, value string, issuedAt, expiresAt time.Time, scopes ...string) (*AccessToken, error) {
	if !strings.EqualFold(string(tokenType), string(TypeBearer)) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTokenType, tokenType)
	}
	b, err := newBase(value, issuedAt, expiresAt)
	if err != nil {
		return nil, err
	}
	return &AccessToken{base: b, tokenType: TypeBearer, scopes: slices.Clone(scopes)}, nil
}

func (*AccessToken) Kind() Kind { return KindAccessToken }

func (t *AccessToken) TokenType() Type { return t.tokenType }

func (t *AccessToken) Scopes() []string { return slices.Clone(t.scopes) }

// RefreshToken is usually far longer lived than the access token it is paired with.
type RefreshToken struct{ base }

func NewRefreshToken(value string, issuedAt, expiresAt time.Time) (*RefreshToken, error) {
	b, err := newBase(value, issuedAt, expiresAt)
	if err != nil {
		return nil, err
	}
	return &RefreshToken{base: b}, nil
}

func (*RefreshToken) Kind() Kind { return KindRefreshToken }
