package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/pkg/errors"
)

// GenerateRequest carries what a generator may embed in, or derive, a token value.
type GenerateRequest struct {
	Kind      Kind
	ClientID  string
	Subject   string
	Scopes    []string
	Claims    map[string]any
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ValueGenerator produces the string value of a new token.
type ValueGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// OpaqueGenerator produces random url-safe values with no embedded meaning.
type OpaqueGenerator struct {
	size int
}

func NewOpaqueGenerator(size int) *OpaqueGenerator {
	if size < 16 {
		size = 32
	}
	return &OpaqueGenerator{size: size}
}

func (g *OpaqueGenerator) Generate(_ context.Context, _ GenerateRequest) (string, error) {
	b := make([]byte, g.size)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "OpaqueGenerator.Generate rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
