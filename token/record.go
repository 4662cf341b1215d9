package token

import (
	"fmt"
	"time"
)

// Record is the serialisable form of a token used by persistent stores.
type Record struct {
	Kind      Kind      `json:"kind"`
	Value     string    `json:"value"`
	TokenType Type      `json:"token_type,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func ToRecord(v Value) Record {
	r := Record{
		Kind:      v.Kind(),
		Value:     v.Value(),
		IssuedAt:  v.IssuedAt(),
		ExpiresAt: v.ExpiresAt(),
	}
	if at, ok := v.(*AccessToken); ok {
		r.TokenType = at.TokenType()
		r.Scopes = at.Scopes()
	}
	return r
}

// FromRecord rebuilds a token, re-running the constructor checks.
func FromRecord(r Record) (Value, error) {
	switch r.Kind {
	case KindAuthorizationCode:
		return NewAuthorizationCode(r.Value, r.IssuedAt, r.ExpiresAt)
	case KindAccessToken:
		return NewAccessToken(r.TokenType, r.Value, r.IssuedAt, r.ExpiresAt, r.Scopes...)
	case KindRefreshToken:
		return NewRefreshToken(r.Value, r.IssuedAt, r.ExpiresAt)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, r.Kind)
	}
}
