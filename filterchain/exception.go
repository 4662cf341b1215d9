package filterchain

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-authserver-security/authn"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/rs/zerolog"
)

// ExceptionTranslationFilter makes the pipeline's challenge and access-denied handling
// available to everything downstream through the request context.
type ExceptionTranslationFilter struct {
	entryPoint   authn.EntryPoint
	accessDenied authn.AccessDeniedHandler
	logger       zerolog.Logger
}

func NewExceptionTranslationFilter(entryPoint authn.EntryPoint, accessDenied authn.AccessDeniedHandler, logger zerolog.Logger) *ExceptionTranslationFilter {
	return &ExceptionTranslationFilter{entryPoint: entryPoint, accessDenied: accessDenied, logger: logger}
}

func (f *ExceptionTranslationFilter) Name() string { return ExceptionTranslationFilterName }

func (f *ExceptionTranslationFilter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next(w, r.WithContext(context.WithValue(r.Context(), translatorKey{}, f)))
	}
}

// translate answers err if it is an authentication or authorization failure.
func (f *ExceptionTranslationFilter) translate(w http.ResponseWriter, r *http.Request, err error) bool {
	_, authenticated := authn.AuthenticationFrom(r.Context())
	switch {
	case apperrors.IsAuthenticationFailure(err), apperrors.Is(err, apperrors.ErrNotAuthenticated):
		f.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("sending authentication challenge")
		f.entryPoint.Commence(w, r, err)
		return true
	case apperrors.Is(err, apperrors.ErrAccessDenied):
		if !authenticated {
			// anonymous callers are challenged rather than refused
			f.entryPoint.Commence(w, r, err)
			return true
		}
		f.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("access denied")
		f.accessDenied.Handle(w, r, err)
		return true
	}
	return false
}

type translatorKey struct{}

// HandleSecurityError lets a handler running behind a pipeline hand an authentication or
// authorization failure back to it. It reports false when err is some other error or no
// pipeline is present.
func HandleSecurityError(w http.ResponseWriter, r *http.Request, err error) bool {
	f, ok := r.Context().Value(translatorKey{}).(*ExceptionTranslationFilter)
	if !ok || err == nil {
		return false
	}
	return f.translate(w, r, err)
}
