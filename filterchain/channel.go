package filterchain

import (
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/rs/zerolog"
)

// ChannelSecurityFilter requires a secure transport. Safe requests are redirected to
// https, anything else is refused before it reaches authentication.
type ChannelSecurityFilter struct {
	logger zerolog.Logger
}

func NewChannelSecurityFilter(logger zerolog.Logger) *ChannelSecurityFilter {
	return &ChannelSecurityFilter{logger: logger}
}

func (f *ChannelSecurityFilter) Name() string { return ChannelSecurityFilterName }

func (f *ChannelSecurityFilter) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if IsSecure(r) {
			next(w, r)
			return
		}

		if r.Method == http.MethodGet || r.Method == http.MethodHead {
			http.Redirect(w, r, "https://"+r.Host+r.URL.RequestURI(), http.StatusFound)
			return
		}

		violation := &apperrors.TransportPolicyViolation{Scheme: "http", Path: r.URL.Path}
		f.logger.Warn().Err(violation).Str("method", r.Method).Msg("rejected insecure request")
		oauth2.WriteError(w, violation)
	}
}

// IsSecure reports whether r arrived over TLS, directly or through a terminating proxy.
func IsSecure(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
