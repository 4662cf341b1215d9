package clients

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jrsteele09/go-authserver-security/oauth2"
)

type ClientType string

const (
	ClientTypeConfidential ClientType = "confidential" // Can keep secrets (server-side apps)
	ClientTypePublic       ClientType = "public"       // Cannot keep secrets (SPAs, mobile apps)
)

var (
	ErrClientNotFound = errors.New("client not found")
	ErrInvalidScope   = errors.New("scope not granted to client")
)

// Client is a registered OAuth2 client. It is treated as immutable once loaded;
// the repo owns persistence.
type Client struct {
	ID           string             `json:"id" yaml:"id"`
	Type         ClientType         `json:"type" yaml:"type"` // public or confidential
	Description  string             `json:"description" yaml:"description"`
	Secret       string             `json:"secret" yaml:"secret"` // opaque, verified by a PasswordVerifier
	RedirectURIs []string           `json:"redirectURIs" yaml:"redirect_uris"`
	Scopes       []string           `json:"scopes" yaml:"scopes"` // Allowed scopes for this client
	GrantTypes   []oauth2.GrantType `json:"grantTypes" yaml:"grant_types"`
	Authorities  []string           `json:"authorities,omitempty" yaml:"authorities"` // Granted to the client once authenticated
}

// Validate checks the registration invariants: an id, at least one grant type and,
// for clients using the authorization_code grant, a non-empty set of redirect URIs.
func (c *Client) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("client id is required")
	}
	if len(c.GrantTypes) == 0 {
		return fmt.Errorf("client %s: at least one grant type is required", c.ID)
	}
	if c.SupportsGrant(oauth2.AuthorizationCodeGrant) && len(c.RedirectURIs) == 0 {
		return fmt.Errorf("client %s: redirect URIs are required for the authorization_code grant", c.ID)
	}
	return nil
}

// IsPublic returns true if the client is a public client
func (c *Client) IsPublic() bool {
	return c.Type == ClientTypePublic
}

// HasScope checks if the client has permission for a specific scope
func (c *Client) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// ValidateScopes checks if all requested scopes are allowed for this client
func (c *Client) ValidateScopes(requested []string) error {
	for _, scope := range requested {
		if !c.HasScope(scope) {
			return fmt.Errorf("%w: %s", ErrInvalidScope, scope)
		}
	}
	return nil
}

// HasRedirectURI reports an exact match against the registered redirect URIs.
func (c *Client) HasRedirectURI(uri string) bool {
	return slices.Contains(c.RedirectURIs, uri)
}

// SupportsGrant reports whether the client was registered for grant.
func (c *Client) SupportsGrant(grant oauth2.GrantType) bool {
	return slices.Contains(c.GrantTypes, grant)
}
