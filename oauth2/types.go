package oauth2

import (
	"fmt"
	"sort"
	"strings"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
// Determines what credentials are required to obtain tokens.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, redirect_uri and authenticated client credentials
	// Returns: access_token, refresh_token (if the client holds the refresh_token grant)
	AuthorizationCodeGrant GrantType = "authorization_code"

	// PasswordGrant exchanges resource owner credentials for tokens.
	// Token request includes: username, password, scope
	PasswordGrant GrantType = "password"

	// ClientCredentialsGrant allows machine-to-machine authentication.
	// Token request includes: client credentials, scope
	// Returns: access_token only, the client is the principal
	ClientCredentialsGrant GrantType = "client_credentials"

	// RefreshTokenGrant exchanges a refresh token for a new token pair.
	// The presented refresh token is rotated and can no longer be used.
	RefreshTokenGrant GrantType = "refresh_token"
)

// ParseGrantType maps a grant_type parameter onto a supported GrantType.
func ParseGrantType(value string) (GrantType, error) {
	switch g := GrantType(strings.TrimSpace(value)); g {
	case AuthorizationCodeGrant, PasswordGrant, ClientCredentialsGrant, RefreshTokenGrant:
		return g, nil
	default:
		return "", fmt.Errorf("unsupported grant type %q", value)
	}
}

// TokenType is the token_type reported with an access token. Only bearer is issued.
type TokenType string

const BearerTokenType TokenType = "bearer"

// ResponseType represents the OAuth 2.0 response type of the authorization endpoint.
type ResponseType string

const CodeResponseType ResponseType = "code"

// Parameter names used on the authorization and token endpoints.
const (
	ParamGrantType     = "grant_type"
	ParamClientID      = "client_id"
	ParamClientSecret  = "client_secret"
	ParamCode          = "code"
	ParamRedirectURI   = "redirect_uri"
	ParamScope         = "scope"
	ParamState         = "state"
	ParamUsername      = "username"
	ParamPassword      = "password"
	ParamRefreshToken  = "refresh_token"
	ParamToken         = "token"
	ParamTokenTypeHint = "token_type_hint"
	ParamResponseType  = "response_type"
)

// ParseScope splits a space-delimited scope parameter into a de-duplicated, sorted set.
func ParseScope(scope string) []string {
	return NormalizeScopes(strings.Fields(scope))
}

// FormatScope joins scopes into the space-delimited wire form.
func FormatScope(scopes []string) string {
	return strings.Join(NormalizeScopes(scopes), " ")
}

// NormalizeScopes applies set semantics: duplicates collapse and order is irrelevant.
func NormalizeScopes(scopes []string) []string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ScopesSubset reports whether every scope in requested is present in allowed.
func ScopesSubset(requested, allowed []string) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, s := range allowed {
		set[s] = struct{}{}
	}
	for _, s := range requested {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}
