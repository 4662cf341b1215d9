package authn

import (
	"github.com/jrsteele09/go-authserver-security/clients"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
)

// ProviderConfig selects where the authentication providers come from.
type ProviderConfig struct {
	// Providers, when non-empty, are used exactly as given and in order. No client
	// secret provider is added alongside them.
	Providers []Provider

	// PasswordVerifier checks client secrets on the default path. It is wrapped with
	// AllowBlankSecret. Without one, secrets are compared unencoded.
	PasswordVerifier PasswordVerifier

	// Clients backs the default client secret provider.
	Clients clients.Repo
}

// ResolveProviders applies the two-path provider policy: explicit providers replace the
// default, they never augment it.
func ResolveProviders(cfg ProviderConfig) ([]Provider, error) {
	if len(cfg.Providers) > 0 {
		for i, p := range cfg.Providers {
			if p == nil {
				return nil, apperrors.Configuration("authentication providers", "provider %d is nil", i)
			}
		}
		out := make([]Provider, len(cfg.Providers))
		copy(out, cfg.Providers)
		return out, nil
	}

	if cfg.Clients == nil {
		return nil, apperrors.Configuration("authentication providers", "a client store is required when no providers are given")
	}
	var verifier PasswordVerifier = PlainVerifier{}
	if cfg.PasswordVerifier != nil {
		verifier = AllowBlankSecret(cfg.PasswordVerifier)
	}
	return []Provider{NewDaoProvider(NewClientDetailsService(cfg.Clients), verifier)}, nil
}

// ResolveEntryPoint returns custom when configured, otherwise a Basic entry point for realm.
func ResolveEntryPoint(custom EntryPoint, realm string) EntryPoint {
	if custom != nil {
		return custom
	}
	if realm == "" {
		realm = DefaultRealm
	}
	return &BasicEntryPoint{Realm: realm}
}

// NewDefaultEntryPoint builds the request-time challenge selector: the resolved entry
// point answers requests negotiating one of DefaultMediaTypes. Other requests go to the
// custom entry point when one is configured, otherwise they are refused with 403.
func NewDefaultEntryPoint(custom EntryPoint, realm string) *DelegatingEntryPoint {
	var fallback EntryPoint = ForbiddenEntryPoint{}
	if custom != nil {
		fallback = custom
	}
	d := NewDelegatingEntryPoint(fallback)
	d.Add(NewMediaTypeMatcher(DefaultMediaTypes...), ResolveEntryPoint(custom, realm))
	return d
}
