package filterchain

import (
	"net/http"

	"github.com/jrsteele09/go-authserver-security/authn"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/rs/zerolog"
)

// ClientCredentialsFilter authenticates clients that post client_id and client_secret
// to the token endpoint as form fields. Failures are challenged by its own entry point,
// separate from the Basic one, so clients can tell which transport was rejected.
type ClientCredentialsFilter struct {
	path       string
	manager    *authn.Manager
	entryPoint authn.EntryPoint
	logger     zerolog.Logger
}

func NewClientCredentialsFilter(path string, manager *authn.Manager, realm string, logger zerolog.Logger) *ClientCredentialsFilter {
	return &ClientCredentialsFilter{
		path:       path,
		manager:    manager,
		entryPoint: &authn.OAuth2EntryPoint{TypeName: "Form", Realm: realm},
		logger:     logger,
	}
}

func (f *ClientCredentialsFilter) Name() string { return ClientCredentialsFilterName }

func (f *ClientCredentialsFilter) EntryPoint() authn.EntryPoint { return f.entryPoint }

func (f *ClientCredentialsFilter) requiresAuthentication(r *http.Request) bool {
	if r.Method != http.MethodPost || r.URL.Path != f.path {
		return false
	}
	if err := r.ParseForm(); err != nil {
		return false
	}
	return r.PostForm.Has(oauth2.ParamClientID)
}

func (f *ClientCredentialsFilter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !f.requiresAuthentication(r) {
			next(w, r)
			return
		}
		if _, ok := authn.AuthenticationFrom(r.Context()); ok {
			next(w, r)
			return
		}

		clientID := r.PostForm.Get(oauth2.ParamClientID)
		secret := r.PostForm.Get(oauth2.ParamClientSecret)

		result, err := f.manager.Authenticate(r.Context(), authn.UsernamePassword(clientID, secret))
		if err != nil {
			if apperrors.IsAuthenticationFailure(err) {
				f.logger.Debug().Str("client_id", clientID).Err(err).Msg("form client authentication failed")
				f.entryPoint.Commence(w, r, err)
				return
			}
			f.logger.Error().Err(err).Msg("form client authentication error")
			oauth2.WriteError(w, err)
			return
		}

		next(w, r.WithContext(authn.WithAuthentication(r.Context(), result)))
	}
}
