package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-authserver-security/internal/utils"
	"github.com/pkg/errors"
)

// AccessClaims is the verified content of a self-contained access token.
type AccessClaims struct {
	ID        string
	Issuer    string
	Subject   string
	ClientID  string
	Scopes    []string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// JWTGenerator signs access tokens. Codes and refresh tokens stay opaque.
type JWTGenerator struct {
	signer   Signer
	issuer   string
	fallback ValueGenerator
	nowFunc  func() time.Time
}

type JWTGeneratorOption func(*JWTGenerator)

func WithIssuer(issuer string) JWTGeneratorOption {
	return func(g *JWTGenerator) {
		g.issuer = issuer
	}
}

func WithJWTNowFunc(now func() time.Time) JWTGeneratorOption {
	return func(g *JWTGenerator) {
		g.nowFunc = now
	}
}

func NewJWTGenerator(signer Signer, opts ...JWTGeneratorOption) *JWTGenerator {
	g := &JWTGenerator{
		signer:   signer,
		fallback: NewOpaqueGenerator(32),
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *JWTGenerator) Signer() Signer {
	return g.signer
}

func (g *JWTGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.Kind != KindAccessToken {
		return g.fallback.Generate(ctx, req)
	}

	subject := req.Subject
	if subject == "" {
		subject = req.ClientID
	}
	claims := jwt.MapClaims{
		"iss":       g.issuer,
		"sub":       subject,
		"client_id": req.ClientID,
		"iat":       req.IssuedAt.Unix(),
		"exp":       req.ExpiresAt.Unix(),
		"jti":       uuid.New().String(),
	}
	if len(req.Scopes) > 0 {
		claims["scope"] = req.Scopes
	}
	for k, v := range req.Claims {
		if _, reserved := claims[k]; !reserved {
			claims[k] = v
		}
	}

	signed, err := g.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "JWTGenerator.Generate")
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token this generator issued.
func (g *JWTGenerator) Verify(raw string) (*AccessClaims, error) {
	parsed, err := jwt.Parse(raw, g.signer.VerificationKey,
		jwt.WithValidMethods([]string{g.signer.SigningMethod().Alg()}),
		jwt.WithTimeFunc(g.nowFunc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "JWTGenerator.Verify")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, errors.New("JWTGenerator.Verify: invalid claims")
	}

	ac := &AccessClaims{}
	ac.ID, _ = claims["jti"].(string)
	ac.Issuer, _ = claims["iss"].(string)
	ac.Subject, _ = claims["sub"].(string)
	ac.ClientID, _ = claims["client_id"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		ac.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ac.ExpiresAt = exp.Time
	}
	if raw, ok := claims["scope"].([]any); ok {
		ac.Scopes = utils.ToStringSlice(raw)
	}
	return ac, nil
}
