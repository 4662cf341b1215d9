package authorization

import (
	"maps"
	"slices"
)

// Well-known attribute names.
const (
	AttributeAuthorizationRequest = "authorization_request"
	AttributePrincipal            = "principal"
	AttributeState                = "state"
)

// Request is the snapshot of the original authorize-endpoint call, kept for audit and consent replay.
type Request struct {
	AuthorizationURI     string            `json:"authorization_uri"`
	ClientID             string            `json:"client_id"`
	RedirectURI          string            `json:"redirect_uri"`
	Scopes               []string          `json:"scopes"`
	AdditionalParameters map[string]string `json:"additional_parameters,omitempty"`
	State                string            `json:"state,omitempty"`
}

func (r *Request) clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	c.Scopes = slices.Clone(r.Scopes)
	c.AdditionalParameters = maps.Clone(r.AdditionalParameters)
	return &c
}

// Principal is the authenticated subject stored alongside the grant.
type Principal struct {
	Name        string   `json:"name"`
	Authorities []string `json:"authorities,omitempty"`
}
