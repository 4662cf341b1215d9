package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/go-authserver-security/auth"
	"github.com/jrsteele09/go-authserver-security/authn"
	"github.com/jrsteele09/go-authserver-security/filterchain"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/jrsteele09/go-authserver-security/notifier"
	"github.com/jrsteele09/go-authserver-security/oauth2"
	pkgerrors "github.com/pkg/errors"
)

const healthCheckTimeout = 2 * time.Second

// Authorize issues an authorization code to the resource owner authenticated on the
// request and redirects back to the client.
func (s *Server) Authorize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, ok := authn.AuthenticationFrom(r.Context())
		if !ok {
			s.userEntryPoint().Commence(w, r, apperrors.AuthenticationFailed("resource owner authentication required", apperrors.ErrNotAuthenticated))
			return
		}

		params := auth.AuthorizationParametersFromQuery(r.URL.Query())
		params.AuthorizationURI = endpointURL(r)
		resp, err := s.auth.Authorize(r.Context(), owner, params)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		location, err := resp.Location()
		if err != nil {
			oauth2.WriteError(w, oauth2.ErrInvalidRequest("redirect_uri is not a valid URL"))
			return
		}
		http.Redirect(w, r, location, http.StatusSeeOther)
	}
}

// Token exchanges a grant for tokens. The client was authenticated by the pipeline.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			oauth2.WriteError(w, oauth2.ErrInvalidRequest("failed to parse form data"))
			return
		}
		client, _ := authn.AuthenticationFrom(r.Context())

		resp, err := s.auth.Token(r.Context(), client, auth.TokenParametersFromForm(r.PostForm))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		oauth2.WriteJSON(w, http.StatusOK, resp)
	}
}

// CheckToken introspects an access token for resource servers.
func (s *Server) CheckToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			oauth2.WriteError(w, oauth2.ErrInvalidRequest("failed to parse form data"))
			return
		}

		introspection, err := s.auth.CheckToken(r.Context(), r.PostForm.Get(oauth2.ParamToken))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		oauth2.WriteJSON(w, http.StatusOK, introspection)
	}
}

// TokenKey publishes the access token verification key.
func (s *Server) TokenKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, err := s.auth.TokenKey()
		if errors.Is(err, auth.ErrTokenKeyUnavailable) {
			oauth2.WriteJSON(w, http.StatusNotFound, oauth2.NewError(oauth2.ErrorCodeInvalidRequest, err.Error(), http.StatusNotFound))
			return
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		oauth2.WriteJSON(w, http.StatusOK, key)
	}
}

// Revoke revokes an access or refresh token held by the calling client.
func (s *Server) Revoke() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			oauth2.WriteError(w, oauth2.ErrInvalidRequest("failed to parse form data"))
			return
		}
		client, _ := authn.AuthenticationFrom(r.Context())

		err := s.auth.Revoke(r.Context(), client, r.PostForm.Get(oauth2.ParamToken), r.PostForm.Get(oauth2.ParamTokenTypeHint))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// endpointURL is the absolute URL of r without its query.
func endpointURL(r *http.Request) string {
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path}
	if filterchain.IsSecure(r) {
		u.Scheme = "https"
	}
	return u.String()
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the authorization store is reachable.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok"}
		if p, ok := s.repos.Authorizations.(pinger); ok {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("authorization store unreachable")
				oauth2.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		oauth2.WriteJSON(w, http.StatusOK, status)
	}
}

// writeError hands authentication and access failures back to the pipeline for a
// challenge and writes everything else as an OAuth2 error. An invalid grant is always
// an OAuth2 error, even when it wraps a failed resource owner login.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if !apperrors.IsInvalidGrant(err) && filterchain.HandleSecurityError(w, r, err) {
		return
	}
	if oe := oauth2.ErrorFrom(err); oe.Status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	oauth2.WriteError(w, err)
}

// Events streams the grant events of the calling client over a websocket. Public
// clients are refused since anyone can present their id.
func (s *Server) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := authn.AuthenticationFrom(r.Context())
		if caller == nil {
			s.writeError(w, r, apperrors.AuthenticationFailed("client authentication required", apperrors.ErrNotAuthenticated))
			return
		}
		client, err := s.repos.Clients.Get(r.Context(), caller.Name())
		if err != nil {
			s.writeError(w, r, oauth2.ErrInvalidClient("unknown client").WithCause(err))
			return
		}
		if client.IsPublic() {
			s.writeError(w, r, pkgerrors.Wrap(apperrors.ErrAccessDenied, "public clients cannot subscribe to grant events"))
			return
		}
		s.hub.Subscribe(w, r, client.ID)
	}
}

// publishEvent delivers e to the subscribers of the client it concerns.
func (s *Server) publishEvent(_ context.Context, e auth.Event) {
	s.hub.Publish(e.ClientID, notifier.Message{Type: string(e.Type), Payload: e})
}
