package server

import (
	"github.com/jrsteele09/go-authserver-security/filterchain"
	"github.com/pkg/errors"
)

func (s *Server) initRoutes() error {
	fullyAuthenticated, err := filterchain.ParseExpression(filterchain.IsFullyAuthenticated)
	if err != nil {
		return errors.Wrap(err, "[initRoutes] access rule")
	}

	// Client endpoints, all behind the client security pipeline
	s.RegisterRouteHandler("POST "+RouteOAuthToken, ChainMiddleware(s.pipeline.Protect(fullyAuthenticated, s.Token()), s.APIMiddleware(RouteOAuthToken)...))
	s.RegisterRouteHandler("POST "+RouteOAuthCheckToken, ChainMiddleware(s.pipeline.Protect(s.pipeline.CheckTokenAccess(), s.CheckToken()), s.APIMiddleware(RouteOAuthCheckToken)...))
	s.RegisterRouteHandler("GET "+RouteOAuthTokenKey, ChainMiddleware(s.pipeline.Protect(s.pipeline.TokenKeyAccess(), s.TokenKey()), s.APIMiddleware(RouteOAuthTokenKey)...))
	s.RegisterRouteHandler("POST "+RouteOAuthRevoke, ChainMiddleware(s.pipeline.Protect(fullyAuthenticated, s.Revoke()), s.APIMiddleware(RouteOAuthRevoke)...))
	s.RegisterRouteHandler("GET "+RouteOAuthEvents, ChainMiddleware(s.pipeline.Protect(fullyAuthenticated, s.Events()), s.APIMiddleware(RouteOAuthEvents)...))

	// Resource owners authenticate to the authorization endpoint with their own credentials
	if s.owners != nil {
		s.RegisterRouteHandler("GET "+RouteOAuthAuthorize, ChainMiddleware(s.Authorize(), s.APIMiddleware(RouteOAuthAuthorize, s.FrameSecurityMiddleware, s.owners.Wrap)...))
	}

	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.Handler())
	s.RegisterRouteHandler("GET "+RouteHealth, ChainMiddleware(s.Health(), s.APIMiddleware(RouteHealth)...))
	return nil
}
