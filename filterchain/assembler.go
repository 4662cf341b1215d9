package filterchain

import (
	"errors"
	"slices"

	"github.com/jrsteele09/go-authserver-security/authn"
)

var ErrPhaseOrder = errors.New("filter chain phases must run init then configure")

type phase int

const (
	phaseNew phase = iota
	phaseInitialised
	phaseConfigured
)

// Assembler builds a Pipeline in two phases. Init resolves providers and entry points
// and lays down transport and Basic filters. Configure inserts the client credential and
// custom filters and installs exception translation. Repeating a completed phase is a
// no-op; running configure first is an error.
type Assembler struct {
	cfg   Config
	phase phase

	manager      *authn.Manager
	entryPoint   authn.EntryPoint
	defaultEntry *authn.DelegatingEntryPoint
	csrfDisabled bool
	filters      []Filter

	tokenKeyAccess   Expression
	checkTokenAccess Expression
}

// NewAssembler validates cfg. Misconfiguration fails here rather than per request.
func NewAssembler(cfg Config) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	cfg.Providers = slices.Clone(cfg.Providers)
	cfg.TokenEndpointFilters = slices.Clone(cfg.TokenEndpointFilters)
	return &Assembler{cfg: cfg}, nil
}

func (a *Assembler) Init() error {
	if a.phase >= phaseInitialised {
		return nil
	}

	providers, err := authn.ResolveProviders(authn.ProviderConfig{
		Providers:        a.cfg.Providers,
		PasswordVerifier: a.cfg.PasswordVerifier,
		Clients:          a.cfg.Clients,
	})
	if err != nil {
		return err
	}
	var opts []authn.ManagerOption
	if a.cfg.EventPublisher != nil {
		opts = append(opts, authn.WithEventPublisher(a.cfg.EventPublisher))
	}
	manager, err := authn.NewManager(providers, opts...)
	if err != nil {
		return err
	}

	if a.tokenKeyAccess, err = ParseExpression(a.cfg.TokenKeyAccess); err != nil {
		return err
	}
	if a.checkTokenAccess, err = ParseExpression(a.cfg.CheckTokenAccess); err != nil {
		return err
	}

	a.manager = manager
	a.entryPoint = authn.ResolveEntryPoint(a.cfg.EntryPoint, a.cfg.Realm)
	a.defaultEntry = authn.NewDefaultEntryPoint(a.cfg.EntryPoint, a.cfg.Realm)

	// token and introspection endpoints are called by clients, not browser forms
	a.csrfDisabled = true

	if a.cfg.SSLOnly {
		a.filters = append(a.filters, NewChannelSecurityFilter(a.cfg.Logger))
	}
	a.filters = append(a.filters, NewBasicAuthenticationFilter(a.manager, a.entryPoint, a.cfg.Logger))

	a.phase = phaseInitialised
	a.cfg.Logger.Debug().
		Str("realm", a.cfg.Realm).
		Bool("ssl_only", a.cfg.SSLOnly).
		Int("providers", len(providers)).
		Msg("filter chain initialised")
	return nil
}

func (a *Assembler) Configure() error {
	switch a.phase {
	case phaseNew:
		return ErrPhaseOrder
	case phaseConfigured:
		return nil
	}

	firstAuth := BasicAuthenticationFilterName
	if a.cfg.AllowFormAuthenticationForClients {
		cc := NewClientCredentialsFilter(a.cfg.TokenEndpointPath, a.manager, a.cfg.Realm, a.cfg.Logger)
		a.filters = insertBefore(a.filters, BasicAuthenticationFilterName, cc)
		firstAuth = ClientCredentialsFilterName
	}
	// custom filters get first refusal, ahead of every built-in authentication filter
	a.filters = insertBefore(a.filters, firstAuth, a.cfg.TokenEndpointFilters...)

	a.filters = append(a.filters, NewExceptionTranslationFilter(a.defaultEntry, a.cfg.AccessDeniedHandler, a.cfg.Logger))

	a.phase = phaseConfigured
	a.cfg.Logger.Debug().Strs("filters", filterNames(a.filters)).Msg("filter chain configured")
	return nil
}

// Build runs whichever phases have not run yet and returns the assembled pipeline.
func (a *Assembler) Build() (*Pipeline, error) {
	if err := a.Init(); err != nil {
		return nil, err
	}
	if err := a.Configure(); err != nil {
		return nil, err
	}
	return &Pipeline{
		filters:          slices.Clone(a.filters),
		manager:          a.manager,
		entryPoint:       a.defaultEntry,
		accessDenied:     a.cfg.AccessDeniedHandler,
		realm:            a.cfg.Realm,
		csrfDisabled:     a.csrfDisabled,
		tokenKeyAccess:   a.tokenKeyAccess,
		checkTokenAccess: a.checkTokenAccess,
		logger:           a.cfg.Logger,
	}, nil
}

func filterNames(filters []Filter) []string {
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.Name()
	}
	return names
}
