package authorization

import (
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-authserver-security/clients"
	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/jrsteele09/go-authserver-security/token"
	"github.com/pkg/errors"
)

// Builder accumulates an Authorization one field at a time. Build validates the result.
type Builder struct {
	id                 string
	principalName      string
	registeredClientID string
	clientScopes       []string
	grantType          oauth2.GrantType
	authorizedScopes   []string
	tokens             map[token.Kind]*Token
	attributes         map[string]any
}

// WithRegisteredClient starts a builder for a grant owned by client.
func WithRegisteredClient(client *clients.Client) *Builder {
	b := &Builder{
		tokens:     make(map[token.Kind]*Token),
		attributes: make(map[string]any),
	}
	if client != nil {
		b.registeredClientID = client.ID
		b.clientScopes = oauth2.NormalizeScopes(client.Scopes)
	}
	return b
}

func (b *Builder) ID(id string) *Builder {
	b.id = id
	return b
}

func (b *Builder) PrincipalName(name string) *Builder {
	b.principalName = name
	return b
}

func (b *Builder) GrantType(grantType oauth2.GrantType) *Builder {
	b.grantType = grantType
	return b
}

func (b *Builder) AuthorizedScopes(scopes ...string) *Builder {
	b.authorizedScopes = oauth2.NormalizeScopes(scopes)
	return b
}

// Attribute stores a free-form attribute. A *Request stored under
// AttributeAuthorizationRequest widens the scopes Build accepts.
func (b *Builder) Attribute(name string, value any) *Builder {
	if r, ok := value.(*Request); ok {
		value = r.clone()
	}
	b.attributes[name] = value
	return b
}

// Token stores tok under its own kind, replacing any previous token of that kind.
// mutator is applied to a fresh default metadata map.
func (b *Builder) Token(tok token.Value, mutator MetadataMutator) *Builder {
	if tok == nil {
		return b
	}
	b.tokens[tok.Kind()] = newToken(tok, mutator)
	return b
}

func (b *Builder) Build() (*Authorization, error) {
	if b.registeredClientID == "" {
		return nil, ErrMissingClient
	}
	if b.id == "" {
		b.id = uuid.New().String()
	}

	allowed := slices.Clone(b.clientScopes)
	if r, ok := b.attributes[AttributeAuthorizationRequest].(*Request); ok {
		allowed = append(allowed, r.Scopes...)
	}
	if !oauth2.ScopesSubset(b.authorizedScopes, allowed) {
		return nil, errors.Wrapf(ErrScopeNotAllowed, "authorized %v, allowed %v", b.authorizedScopes, oauth2.NormalizeScopes(allowed))
	}

	access, hasAccess := b.tokens[token.KindAccessToken]
	if hasAccess && b.principalName == "" {
		return nil, ErrMissingPrincipal
	}
	if refresh, ok := b.tokens[token.KindRefreshToken]; ok && hasAccess {
		if !refresh.value.ExpiresAt().After(access.value.ExpiresAt()) {
			return nil, ErrRefreshOutlivesAccess
		}
	}

	return &Authorization{
		id:                 b.id,
		principalName:      b.principalName,
		registeredClientID: b.registeredClientID,
		clientScopes:       slices.Clone(b.clientScopes),
		grantType:          b.grantType,
		authorizedScopes:   slices.Clone(b.authorizedScopes),
		tokens:             maps.Clone(b.tokens),
		attributes:         maps.Clone(b.attributes),
	}, nil
}
