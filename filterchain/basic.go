package filterchain

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-authserver-security/authn"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/rs/zerolog"
)

// BasicAuthenticationFilter authenticates clients presenting HTTP Basic credentials.
// Requests without an Authorization: Basic header pass through untouched.
type BasicAuthenticationFilter struct {
	manager    *authn.Manager
	entryPoint authn.EntryPoint
	logger     zerolog.Logger
}

func NewBasicAuthenticationFilter(manager *authn.Manager, entryPoint authn.EntryPoint, logger zerolog.Logger) *BasicAuthenticationFilter {
	return &BasicAuthenticationFilter{manager: manager, entryPoint: entryPoint, logger: logger}
}

func (f *BasicAuthenticationFilter) Name() string { return BasicAuthenticationFilterName }

func (f *BasicAuthenticationFilter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, payload, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "basic") {
			next(w, r)
			return
		}

		clientID, secret, err := decodeBasic(payload)
		if err != nil {
			f.logger.Debug().Err(err).Msg("malformed basic credentials")
			f.entryPoint.Commence(w, r, err)
			return
		}

		if current, ok := authn.AuthenticationFrom(r.Context()); ok && current.Principal == clientID {
			next(w, r)
			return
		}

		result, err := f.manager.Authenticate(r.Context(), authn.UsernamePassword(clientID, secret))
		if err != nil {
			if apperrors.IsAuthenticationFailure(err) {
				f.logger.Debug().Str("client_id", clientID).Err(err).Msg("basic authentication failed")
				f.entryPoint.Commence(w, r, err)
				return
			}
			f.logger.Error().Err(err).Msg("basic authentication error")
			oauth2.WriteError(w, err)
			return
		}

		next(w, r.WithContext(authn.WithAuthentication(r.Context(), result)))
	}
}

// decodeBasic splits a Basic token into its form-url-decoded id and secret.
func decodeBasic(payload string) (string, string, error) {
	malformed := apperrors.AuthenticationFailed("invalid basic authentication token", apperrors.ErrBadCredentials)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", "", malformed
	}
	id, secret, ok := strings.Cut(string(raw), ":")
	if !ok {
		return "", "", malformed
	}
	if id, err = url.QueryUnescape(id); err != nil {
		return "", "", malformed
	}
	if secret, err = url.QueryUnescape(secret); err != nil {
		return "", "", malformed
	}
	return id, secret, nil
}
