package auth

import (
	"strings"

	"github.com/jrsteele09/go-authserver-security/clients"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/jrsteele09/go-authserver-security/oauth2"
)

// validateAuthorizationRequest checks the request against the registered client and
// returns the effective redirect URI and scopes.
func validateAuthorizationRequest(p *AuthorizationParameters, client *clients.Client) (string, []string, error) {
	if p.ResponseType != oauth2.CodeResponseType {
		return "", nil, oauth2.ErrUnsupportedResponseType("response_type must be code")
	}
	if !client.SupportsGrant(oauth2.AuthorizationCodeGrant) {
		return "", nil, oauth2.ErrUnauthorizedClient("client is not registered for the authorization_code grant")
	}

	redirectURI, err := resolveRedirectURI(p.RedirectURI, client)
	if err != nil {
		return "", nil, err
	}

	scopes, err := narrowScopes(p.Scope, client.Scopes)
	if err != nil {
		return "", nil, err
	}
	return redirectURI, scopes, nil
}

func resolveRedirectURI(requested string, client *clients.Client) (string, error) {
	if strings.TrimSpace(requested) == "" {
		if len(client.RedirectURIs) == 1 {
			return client.RedirectURIs[0], nil
		}
		return "", oauth2.ErrInvalidRequest("redirect_uri is required").WithCause(apperrors.ErrInvalidRedirectURI)
	}
	if !client.HasRedirectURI(requested) {
		return "", oauth2.ErrInvalidRequest("redirect_uri is not registered for the client").WithCause(apperrors.ErrInvalidRedirectURI)
	}
	return requested, nil
}

// narrowScopes returns the requested scopes when they are a subset of allowed, or
// allowed itself when nothing was requested.
func narrowScopes(requested string, allowed []string) ([]string, error) {
	scopes := oauth2.ParseScope(requested)
	if len(scopes) == 0 {
		return oauth2.NormalizeScopes(allowed), nil
	}
	if !oauth2.ScopesSubset(scopes, allowed) {
		return nil, oauth2.ErrInvalidScope("requested scope exceeds the granted scope")
	}
	return scopes, nil
}
