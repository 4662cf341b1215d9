package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-authserver-security/auth"
	"github.com/jrsteele09/go-authserver-security/authn"
	"github.com/jrsteele09/go-authserver-security/filterchain"
	"github.com/jrsteele09/go-authserver-security/internal/config"
	"github.com/jrsteele09/go-authserver-security/notifier"
	"github.com/jrsteele09/go-authserver-security/token"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

const (
	userRealm             = "oauth2/user"
	revokedCleanupPeriod  = time.Minute
	defaultSigningKeyName = "authserver"
)

type Server struct {
	env      string // Environment (e.g., "DEV", "PROD")
	mux      *http.ServeMux
	routes   []string
	config   config.Config
	auth     *auth.AuthorizationService
	repos    auth.Repos
	pipeline *filterchain.Pipeline
	owners   *filterchain.BasicAuthenticationFilter
	hub      *notifier.Hub
	metrics  *Metrics
	logger   zerolog.Logger

	registry    *prometheus.Registry
	authOptions []auth.AuthorizationServiceOption
}

type ServerOption func(*Server)

func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRegistry exposes the server metrics on registry instead of a private one.
func WithRegistry(registry *prometheus.Registry) ServerOption {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithAuthorizationOptions passes extra options to the authorization service, after the
// ones derived from configuration.
func WithAuthorizationOptions(opts ...auth.AuthorizationServiceOption) ServerOption {
	return func(s *Server) {
		s.authOptions = append(s.authOptions, opts...)
	}
}

func New(cfg config.Config, repos auth.Repos, opts ...ServerOption) (*Server, error) {
	s := &Server{
		env:    cfg.GetEnv(),
		mux:    http.NewServeMux(),
		config: cfg,
		repos:  repos,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	metrics, err := NewMetrics(s.registry)
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] metrics")
	}
	s.metrics = metrics
	s.hub = notifier.NewHub(s.logger, notifier.WithCheckOrigin(s.sameOriginOrAllowed))

	authnEvents := authn.EventPublishers{authn.NewLoggingEventPublisher(s.logger), s.metrics}

	authOpts := []auth.AuthorizationServiceOption{
		auth.WithLogger(s.logger),
		auth.WithTokenSettings(auth.TokenSettings{
			AuthorizationCodeTTL: cfg.GetAuthCodeTimeout(),
			AccessTokenTTL:       cfg.GetDefaultAccessTokenExpiry(),
			RefreshTokenTTL:      cfg.GetDefaultRefreshTokenExpiry(),
		}),
		auth.WithEventSink(auth.EventSinks{s.metrics, auth.EventSinkFunc(s.publishEvent)}),
		auth.WithAuthenticationEvents(authnEvents),
	}
	generator, err := accessTokenGenerator(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] access token generator")
	}
	if generator != nil {
		authOpts = append(authOpts,
			auth.WithAccessTokenGenerator(generator),
			auth.WithRevokedCache(token.NewInMemoryRevokedTokenCache(revokedCleanupPeriod)),
		)
	}

	s.auth, err = auth.NewAuthorizationService(repos, append(authOpts, s.authOptions...)...)
	if err != nil {
		return nil, errors.Wrap(err, "[Server New] failed to create authorization service")
	}

	if err := s.Bootstrap(); err != nil {
		return nil, errors.Wrap(err, "[Server New] bootstrap")
	}

	if s.pipeline, err = s.buildPipeline(authnEvents); err != nil {
		return nil, errors.Wrap(err, "[Server New] security pipeline")
	}
	if repos.Users != nil {
		manager, err := authn.NewManager(
			[]authn.Provider{authn.NewDaoProvider(authn.NewResourceOwnerDetailsService(repos.Users), authn.BcryptVerifier{})},
			authn.WithEventPublisher(authnEvents),
		)
		if err != nil {
			return nil, errors.Wrap(err, "[Server New] resource owner authentication")
		}
		s.owners = filterchain.NewBasicAuthenticationFilter(manager, s.userEntryPoint(), s.logger)
	}

	if err := s.initRoutes(); err != nil {
		return nil, err
	}
	s.logRoutes()

	return s, nil
}

func (s *Server) buildPipeline(events authn.EventPublisher) (*filterchain.Pipeline, error) {
	cfg := filterchain.Config{
		Realm:                             s.config.GetRealm(),
		SSLOnly:                           s.config.GetSSLOnly(),
		AllowFormAuthenticationForClients: s.config.GetAllowFormAuthenticationForClients(),
		TokenEndpointPath:                 RouteOAuthToken,
		PasswordVerifier:                  authn.BcryptVerifier{},
		Clients:                           s.repos.Clients,
		TokenKeyAccess:                    s.config.GetTokenKeyAccess(),
		CheckTokenAccess:                  s.config.GetCheckTokenAccess(),
		EventPublisher:                    events,
		Logger:                            s.logger,
	}
	if s.config.GetEnableRateLimiting() {
		cfg.TokenEndpointFilters = append(cfg.TokenEndpointFilters, filterchain.NewRateLimitFilter(
			s.config.GetRateLimitRPS(),
			s.config.GetRateLimitBurst(),
			s.config.GetRateLimitIdleTTL(),
			s.logger,
		))
	}

	assembler, err := filterchain.NewAssembler(cfg)
	if err != nil {
		return nil, err
	}
	if err := assembler.Init(); err != nil {
		return nil, err
	}
	if err := assembler.Configure(); err != nil {
		return nil, err
	}
	pipeline, err := assembler.Build()
	if err != nil {
		return nil, err
	}
	s.logger.Info().Strs("filters", pipeline.Order()).Msg("security pipeline assembled")
	return pipeline, nil
}

// accessTokenGenerator signs access tokens with the configured RSA key file or HMAC
// secret. With neither configured it returns nil and access tokens stay opaque.
func accessTokenGenerator(cfg config.OAuthConfig) (token.ValueGenerator, error) {
	jwtOpts := []token.JWTGeneratorOption{}
	if issuer := cfg.GetIssuer(); issuer != "" {
		jwtOpts = append(jwtOpts, token.WithIssuer(issuer))
	}

	if path := cfg.GetJWTKeyFile(); path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "[accessTokenGenerator] read key file")
		}
		keyID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if keyID == "" {
			keyID = defaultSigningKeyName
		}
		kp, err := token.LoadKeyPairFromPEM(keyID, string(pem))
		if err != nil {
			return nil, errors.Wrap(err, "[accessTokenGenerator] load key pair")
		}
		return token.NewJWTGenerator(token.NewKeyPairSigner(kp), jwtOpts...), nil
	}
	if secret := cfg.GetJWTSecret(); secret != "" {
		return token.NewJWTGenerator(token.NewHMACSigner(secret), jwtOpts...), nil
	}
	return nil, nil
}

func (s *Server) userEntryPoint() authn.EntryPoint {
	return &authn.BasicEntryPoint{Realm: userRealm}
}

// Pipeline returns the client security pipeline guarding the token endpoints.
func (s *Server) Pipeline() *filterchain.Pipeline {
	return s.pipeline
}

// AuthorizationService exposes the service so the host can schedule housekeeping.
func (s *Server) AuthorizationService() *auth.AuthorizationService {
	return s.auth
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			s.logRoute(parts[0], parts[1])
		} else {
			s.logRoute("", parts[0])
		}
	}
}

func (s *Server) logRoute(method, path string) {
	s.logger.Info().Msgf("[%s] %s", colourMethod(method), path)
}

func (s *Server) logRequest(method, path string, status int) {
	s.logger.Info().Msgf("[%s] %s %s%d%s", colourMethod(method), path, colourStatus(status), status, ResetColor)
}
