package filterchain

import (
	"net/http"

	"github.com/jrsteele09/go-authserver-security/authn"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/rs/zerolog"
)

// Pipeline is an assembled, immutable filter chain. It is safe for concurrent use.
type Pipeline struct {
	filters          []Filter
	manager          *authn.Manager
	entryPoint       *authn.DelegatingEntryPoint
	accessDenied     authn.AccessDeniedHandler
	realm            string
	csrfDisabled     bool
	tokenKeyAccess   Expression
	checkTokenAccess Expression
	logger           zerolog.Logger
}

// Order returns the filter names in execution order.
func (p *Pipeline) Order() []string { return filterNames(p.filters) }

func (p *Pipeline) Manager() *authn.Manager { return p.manager }

func (p *Pipeline) EntryPoint() *authn.DelegatingEntryPoint { return p.entryPoint }

func (p *Pipeline) Realm() string { return p.realm }

func (p *Pipeline) CSRFDisabled() bool { return p.csrfDisabled }

func (p *Pipeline) TokenKeyAccess() Expression { return p.tokenKeyAccess }

func (p *Pipeline) CheckTokenAccess() Expression { return p.checkTokenAccess }

// Then runs h behind every filter of the pipeline.
func (p *Pipeline) Then(h http.HandlerFunc) http.HandlerFunc {
	return Chain(h, p.filters...)
}

// Protect runs h behind the pipeline and only when expr permits the caller. Anonymous
// callers that are refused get the authentication challenge; authenticated ones get the
// access-denied handler.
func (p *Pipeline) Protect(expr Expression, h http.HandlerFunc) http.HandlerFunc {
	return p.Then(func(w http.ResponseWriter, r *http.Request) {
		current, _ := authn.AuthenticationFrom(r.Context())
		if expr.Permits(current) {
			h(w, r)
			return
		}
		if current == nil {
			p.entryPoint.Commence(w, r, apperrors.AuthenticationFailed("full authentication is required to access this resource", apperrors.ErrNotAuthenticated))
			return
		}
		p.logger.Debug().Str("principal", current.Principal).Str("rule", expr.String()).Msg("access denied")
		p.accessDenied.Handle(w, r, apperrors.ErrAccessDenied)
	})
}
