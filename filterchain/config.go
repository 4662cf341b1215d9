package filterchain

import (
	"github.com/jrsteele09/go-authserver-security/authn"
	"github.com/jrsteele09/go-authserver-security/clients"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/rs/zerolog"
)

const DefaultTokenEndpointPath = "/oauth/token"

// Config describes one authorization server security pipeline. Zero values take the
// documented defaults.
type Config struct {
	// Realm names the protection space in Basic and Form challenges. Default "oauth2/client".
	Realm string

	// SSLOnly requires a secure transport for every request on the pipeline.
	SSLOnly bool

	// AllowFormAuthenticationForClients accepts client_id and client_secret posted as
	// form fields to the token endpoint, in addition to HTTP Basic.
	AllowFormAuthenticationForClients bool

	TokenEndpointPath string

	// EntryPoint replaces the default Basic challenge for every request.
	EntryPoint authn.EntryPoint

	// AccessDeniedHandler defaults to authn.OAuth2AccessDeniedHandler.
	AccessDeniedHandler authn.AccessDeniedHandler

	// Providers replaces the default client secret provider when non-empty.
	Providers []authn.Provider

	PasswordVerifier authn.PasswordVerifier
	Clients          clients.Repo

	// TokenEndpointFilters run, in order, ahead of the built-in authentication filters.
	TokenEndpointFilters []Filter

	// TokenKeyAccess and CheckTokenAccess guard the token_key and check_token endpoints.
	// Both default to denyAll().
	TokenKeyAccess   string
	CheckTokenAccess string

	EventPublisher authn.EventPublisher
	Logger         zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.Realm == "" {
		c.Realm = authn.DefaultRealm
	}
	if c.TokenEndpointPath == "" {
		c.TokenEndpointPath = DefaultTokenEndpointPath
	}
	if c.AccessDeniedHandler == nil {
		c.AccessDeniedHandler = authn.OAuth2AccessDeniedHandler{}
	}
	if c.TokenKeyAccess == "" {
		c.TokenKeyAccess = DenyAll
	}
	if c.CheckTokenAccess == "" {
		c.CheckTokenAccess = DenyAll
	}
}

// Validate rejects wiring mistakes that would otherwise only show up at request time.
func (c *Config) Validate() error {
	for i, f := range c.TokenEndpointFilters {
		if f == nil {
			return apperrors.Configuration("filter chain", "token endpoint filter %d is nil", i)
		}
	}
	for i, p := range c.Providers {
		if p == nil {
			return apperrors.Configuration("filter chain", "authentication provider %d is nil", i)
		}
	}
	if len(c.Providers) == 0 && c.Clients == nil {
		return apperrors.Configuration("filter chain", "a client store is required when no providers are given")
	}
	if _, err := ParseExpression(c.tokenKeyAccessOrDefault()); err != nil {
		return err
	}
	if _, err := ParseExpression(c.checkTokenAccessOrDefault()); err != nil {
		return err
	}
	return nil
}

func (c *Config) tokenKeyAccessOrDefault() string {
	if c.TokenKeyAccess == "" {
		return DenyAll
	}
	return c.TokenKeyAccess
}

func (c *Config) checkTokenAccessOrDefault() string {
	if c.CheckTokenAccess == "" {
		return DenyAll
	}
	return c.CheckTokenAccess
}
