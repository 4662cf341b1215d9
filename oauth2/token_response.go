package oauth2

import (
	"encoding/json"
	"net/http"
)

// TokenResponse represents the response from an OAuth2 token request.
// This is the standard OAuth2 token endpoint response format as defined in RFC 6749.
// Returned from the /oauth/token endpoint for all grant types.
type TokenResponse struct {
	// AccessToken is the token used to access protected resources.
	// Usage: Include in Authorization header: "Bearer <access_token>"
	AccessToken string `json:"access_token"`

	// TokenType indicates how to use the access token (always "bearer").
	TokenType TokenType `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token.
	ExpiresIn int64 `json:"expires_in"`

	// RefreshToken is an opaque token used to obtain new access tokens.
	// Absent for the client_credentials grant and for clients without the refresh_token grant.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// Scope indicates the access token's granted permissions (space separated).
	Scope string `json:"scope,omitempty"`
}

// TokenIntrospection is the check_token response for a presented access token.
// When Active is false no other field is populated.
type TokenIntrospection struct {
	Active    bool      `json:"active"`
	ClientID  string    `json:"client_id,omitempty"`
	Subject   string    `json:"sub,omitempty"`
	Scope     string    `json:"scope,omitempty"`
	TokenType TokenType `json:"token_type,omitempty"`
	GrantType GrantType `json:"grant_type,omitempty"`
	IssuedAt  int64     `json:"iat,omitempty"`
	ExpiresAt int64     `json:"exp,omitempty"`
}

// WriteJSON writes v with the no-store caching headers required for token responses.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
