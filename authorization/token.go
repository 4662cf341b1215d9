package authorization

import (
	"maps"
	"time"

	"github.com/jrsteele09/go-authserver-security/token"
)

// Metadata keys.
const (
	MetadataInvalidated = "invalidated"
	MetadataClaims      = "claims"
)

// Metadata is the per-token metadata map.
type Metadata map[string]any

// MetadataMutator edits a fresh default metadata map before it is attached to a token.
type MetadataMutator func(Metadata)

// WithClaims merges claims into the default claim set.
func WithClaims(claims map[string]any) MetadataMutator {
	return func(md Metadata) {
		existing, _ := md[MetadataClaims].(map[string]any)
		merged := maps.Clone(existing)
		if merged == nil {
			merged = map[string]any{}
		}
		maps.Copy(merged, claims)
		md[MetadataClaims] = merged
	}
}

func defaultMetadata() Metadata {
	return Metadata{
		MetadataInvalidated: false,
		MetadataClaims:      map[string]any{},
	}
}

func (m Metadata) clone() Metadata {
	c := maps.Clone(m)
	if claims, ok := m[MetadataClaims].(map[string]any); ok {
		c[MetadataClaims] = maps.Clone(claims)
	}
	return c
}

// Token pairs an issued token with its metadata.
type Token struct {
	value    token.Value
	metadata Metadata
}

func newToken(v token.Value, mutator MetadataMutator) *Token {
	md := defaultMetadata()
	if mutator != nil {
		mutator(md)
	}
	return &Token{value: v, metadata: md}
}

func (t *Token) Value() token.Value { return t.value }

// Metadata returns a copy of the token metadata.
func (t *Token) Metadata() Metadata { return t.metadata.clone() }

func (t *Token) IsInvalidated() bool {
	invalidated, _ := t.metadata[MetadataInvalidated].(bool)
	return invalidated
}

func (t *Token) Claims() map[string]any {
	claims, _ := t.metadata[MetadataClaims].(map[string]any)
	return maps.Clone(claims)
}

// IsActive is true for a token that is neither invalidated nor expired.
func (t *Token) IsActive(now time.Time) bool {
	return !t.IsInvalidated() && !t.value.IsExpired(now)
}

func (t *Token) invalidated() *Token {
	md := t.metadata.clone()
	md[MetadataInvalidated] = true
	return &Token{value: t.value, metadata: md}
}
