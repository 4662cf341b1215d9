package authorization

import (
	"encoding/json"

	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/jrsteele09/go-authserver-security/token"
	"github.com/pkg/errors"
)

type tokenDoc struct {
	Token    token.Record `json:"token"`
	Metadata Metadata     `json:"metadata"`
}

type document struct {
	ID                 string                     `json:"id"`
	PrincipalName      string                     `json:"principal_name,omitempty"`
	RegisteredClientID string                     `json:"registered_client_id"`
	ClientScopes       []string                   `json:"client_scopes,omitempty"`
	GrantType          oauth2.GrantType           `json:"grant_type,omitempty"`
	AuthorizedScopes   []string                   `json:"authorized_scopes,omitempty"`
	Tokens             map[token.Kind]tokenDoc    `json:"tokens,omitempty"`
	Request            *Request                   `json:"authorization_request,omitempty"`
	Principal          *Principal                 `json:"principal,omitempty"`
	Attributes         map[string]json.RawMessage `json:"attributes,omitempty"`
}

func (a *Authorization) MarshalJSON() ([]byte, error) {
	doc := document{
		ID:                 a.id,
		PrincipalName:      a.principalName,
		RegisteredClientID: a.registeredClientID,
		ClientScopes:       a.clientScopes,
		GrantType:          a.grantType,
		AuthorizedScopes:   a.authorizedScopes,
		Tokens:             make(map[token.Kind]tokenDoc, len(a.tokens)),
		Attributes:         make(map[string]json.RawMessage),
	}
	for kind, t := range a.tokens {
		doc.Tokens[kind] = tokenDoc{Token: token.ToRecord(t.value), Metadata: t.metadata}
	}
	for name, v := range a.attributes {
		switch name {
		case AttributeAuthorizationRequest:
			if r, ok := v.(*Request); ok {
				doc.Request = r
				continue
			}
		case AttributePrincipal:
			if p, ok := v.(*Principal); ok {
				doc.Principal = p
				continue
			}
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %q", name)
		}
		doc.Attributes[name] = raw
	}
	return json.Marshal(doc)
}

// UnmarshalJSON restores an authorization. Well-known attributes come back typed; other
// attributes come back as their generic JSON decoding.
func (a *Authorization) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}

	restored := Authorization{
		id:                 doc.ID,
		principalName:      doc.PrincipalName,
		registeredClientID: doc.RegisteredClientID,
		clientScopes:       doc.ClientScopes,
		grantType:          doc.GrantType,
		authorizedScopes:   doc.AuthorizedScopes,
		tokens:             make(map[token.Kind]*Token, len(doc.Tokens)),
		attributes:         make(map[string]any, len(doc.Attributes)+2),
	}
	for kind, td := range doc.Tokens {
		v, err := token.FromRecord(td.Token)
		if err != nil {
			return errors.Wrapf(err, "token %s", kind)
		}
		md := defaultMetadata()
		for k, val := range td.Metadata {
			md[k] = val
		}
		restored.tokens[kind] = &Token{value: v, metadata: md}
	}
	if doc.Request != nil {
		restored.attributes[AttributeAuthorizationRequest] = doc.Request
	}
	if doc.Principal != nil {
		restored.attributes[AttributePrincipal] = doc.Principal
	}
	for name, raw := range doc.Attributes {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return errors.Wrapf(err, "attribute %q", name)
		}
		restored.attributes[name] = v
	}

	*a = restored
	return nil
}
