package auth

import (
	"net/url"
	"strings"

	"github.com/jrsteele09/go-authserver-security/oauth2"
)

// AuthorizationParameters holds parameters for the OAuth2 authorization request.
// These are typically received as query parameters at the /oauth/authorize endpoint.
type AuthorizationParameters struct {
	// ResponseType must be "code"; the implicit flow is not offered.
	ResponseType oauth2.ResponseType

	// ClientID identifies the application requesting authorization.
	ClientID string

	// RedirectURI is where the authorization response will be sent.
	// Optional when the client registered exactly one URI.
	// Security: Must exactly match a pre-registered URI to prevent open redirects
	RedirectURI string

	// Scope specifies the permissions being requested (space separated).
	// Empty requests every scope registered for the client.
	Scope string

	// State is echoed back on the redirect for CSRF protection.
	State string

	// AuthorizationURI is the endpoint URL the request arrived at.
	AuthorizationURI string

	// AdditionalParameters holds every other single-valued query parameter.
	AdditionalParameters map[string]string
}

var authorizationParamNames = map[string]bool{
	oauth2.ParamResponseType: true,
	oauth2.ParamClientID:     true,
	oauth2.ParamRedirectURI:  true,
	oauth2.ParamScope:        true,
	oauth2.ParamState:        true,
}

// AuthorizationParametersFromQuery reads authorization parameters from a request query.
func AuthorizationParametersFromQuery(q url.Values) *AuthorizationParameters {
	p := &AuthorizationParameters{
		ResponseType: oauth2.ResponseType(strings.TrimSpace(q.Get(oauth2.ParamResponseType))),
		ClientID:     q.Get(oauth2.ParamClientID),
		RedirectURI:  q.Get(oauth2.ParamRedirectURI),
		Scope:        q.Get(oauth2.ParamScope),
		State:        q.Get(oauth2.ParamState),
	}
	for name, values := range q {
		if authorizationParamNames[name] || len(values) != 1 {
			continue
		}
		if p.AdditionalParameters == nil {
			p.AdditionalParameters = make(map[string]string)
		}
		p.AdditionalParameters[name] = values[0]
	}
	return p
}

// TokenParameters holds the form parameters of a token endpoint request.
// Client credentials are not part of it: the filter chain authenticates the client first.
type TokenParameters struct {
	GrantType string

	// authorization_code
	Code        string
	RedirectURI string

	// password
	Username string
	Password string

	// refresh_token
	RefreshToken string

	// Scope narrows the granted scopes (space separated). Empty keeps the default set.
	Scope string
}

// TokenParametersFromForm reads token parameters from a parsed POST form.
func TokenParametersFromForm(form url.Values) *TokenParameters {
	return &TokenParameters{
		GrantType:    form.Get(oauth2.ParamGrantType),
		Code:         form.Get(oauth2.ParamCode),
		RedirectURI:  form.Get(oauth2.ParamRedirectURI),
		Username:     form.Get(oauth2.ParamUsername),
		Password:     form.Get(oauth2.ParamPassword),
		RefreshToken: form.Get(oauth2.ParamRefreshToken),
		Scope:        form.Get(oauth2.ParamScope),
	}
}

// CodeResponse is the result of a successful authorization request.
type CodeResponse struct {
	Code        string
	RedirectURI string
	State       string
}

// Location builds the redirect URL carrying the code and state as query parameters.
func (r *CodeResponse) Location() (string, error) {
	u, err := url.Parse(r.RedirectURI)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(oauth2.ParamCode, r.Code)
	if r.State != "" {
		q.Set(oauth2.ParamState, r.State)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
