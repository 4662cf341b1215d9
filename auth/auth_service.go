package auth

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/jrsteele09/go-authserver-security/authn"
	"github.com/jrsteele09/go-authserver-security/authorization"
	"github.com/jrsteele09/go-authserver-security/clients"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/jrsteele09/go-authserver-security/token"
	"github.com/jrsteele09/go-authserver-security/users"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const opaqueTokenLength = 32

// TokenSettings are the lifetimes of issued tokens.
type TokenSettings struct {
	AuthorizationCodeTTL time.Duration
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
}

// DefaultTokenSettings issues short-lived codes, hour-long access tokens and week-long refresh tokens.
var DefaultTokenSettings = TokenSettings{
	AuthorizationCodeTTL: 5 * time.Minute,
	AccessTokenTTL:       time.Hour,
	RefreshTokenTTL:      7 * 24 * time.Hour,
}

// Repos holds all repository dependencies for the AuthorizationService
type Repos struct {
	Clients        clients.Repo        // Registered OAuth2 clients
	Authorizations authorization.Store // Issued grants and their tokens
	Users          users.Repo          // Resource owners; optional, enables the password grant
}

// AuthorizationService implements the authorize, token, revoke and check_token operations.
type AuthorizationService struct {
	repos        Repos
	owners       *authn.Manager
	accessTokens token.ValueGenerator
	opaque       token.ValueGenerator
	revoked      token.RevokedTokenCache
	settings     TokenSettings
	events       EventSink
	ownerEvents  authn.EventPublisher
	logger       zerolog.Logger
	nowTime      func() time.Time
}

// AuthorizationServiceOption defines a function type to modify the AuthorizationService instance.
type AuthorizationServiceOption func(*AuthorizationService)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.nowTime = nowFunc
	}
}

func WithTokenSettings(settings TokenSettings) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.settings = settings
	}
}

// WithAccessTokenGenerator replaces the opaque access token generator, typically with a JWTGenerator.
func WithAccessTokenGenerator(g token.ValueGenerator) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.accessTokens = g
	}
}

// WithRevokedCache records the ids of revoked signed access tokens.
func WithRevokedCache(c token.RevokedTokenCache) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.revoked = c
	}
}

func WithEventSink(sink EventSink) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.events = sink
	}
}

// WithAuthenticationEvents receives the outcome of resource owner authentication.
func WithAuthenticationEvents(p authn.EventPublisher) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.ownerEvents = p
	}
}

func WithLogger(logger zerolog.Logger) AuthorizationServiceOption {
	return func(as *AuthorizationService) {
		as.logger = logger
	}
}

// NewAuthorizationService initializes a new AuthorizationService with required dependencies.
func NewAuthorizationService(repos Repos, options ...AuthorizationServiceOption) (*AuthorizationService, error) {
	if repos.Clients == nil {
		return nil, pkgerrors.Wrap(ErrMissingRepo, "[NewAuthorizationService] Clients")
	}
	if repos.Authorizations == nil {
		return nil, pkgerrors.Wrap(ErrMissingRepo, "[NewAuthorizationService] Authorizations")
	}

	as := &AuthorizationService{
		repos:    repos,
		opaque:   token.NewOpaqueGenerator(opaqueTokenLength),
		settings: DefaultTokenSettings,
		events:   nopSink{},
		logger:   zerolog.Nop(),
		nowTime:  time.Now,
	}
	as.accessTokens = as.opaque

	for _, opt := range options {
		opt(as)
	}

	if as.settings.RefreshTokenTTL <= as.settings.AccessTokenTTL {
		return nil, apperrors.Configuration("auth", "%v: access %s, refresh %s",
			ErrInvalidTokenSettings, as.settings.AccessTokenTTL, as.settings.RefreshTokenTTL)
	}

	if repos.Users != nil {
		provider := authn.NewDaoProvider(authn.NewResourceOwnerDetailsService(repos.Users), authn.BcryptVerifier{})
		var opts []authn.ManagerOption
		if as.ownerEvents != nil {
			opts = append(opts, authn.WithEventPublisher(as.ownerEvents))
		}
		owners, err := authn.NewManager([]authn.Provider{provider}, opts...)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "[NewAuthorizationService] resource owner manager")
		}
		as.owners = owners
	}
	return as, nil
}

// Authorize issues an authorization code for an authenticated resource owner.
func (as *AuthorizationService) Authorize(ctx context.Context, principal *authn.Authentication, params *AuthorizationParameters) (*CodeResponse, error) {
	if principal == nil || !principal.Authenticated {
		return nil, ErrUnauthenticatedUser
	}

	client, err := as.repos.Clients.Get(ctx, params.ClientID)
	if errors.Is(err, clients.ErrClientNotFound) {
		return nil, oauth2.ErrInvalidClient("unknown client").WithCause(apperrors.ErrInvalidClient)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Authorize] Clients.Get")
	}

	redirectURI, scopes, err := validateAuthorizationRequest(params, client)
	if err != nil {
		return nil, err
	}

	now := as.nowTime()
	value, err := as.opaque.Generate(ctx, token.GenerateRequest{
		Kind:      token.KindAuthorizationCode,
		ClientID:  client.ID,
		Subject:   principal.Name(),
		Scopes:    scopes,
		IssuedAt:  now,
		ExpiresAt: now.Add(as.settings.AuthorizationCodeTTL),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Authorize] generate code")
	}
	code, err := token.NewAuthorizationCode(value, now, now.Add(as.settings.AuthorizationCodeTTL))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Authorize] NewAuthorizationCode")
	}

	builder := authorization.WithRegisteredClient(client).
		PrincipalName(principal.Name()).
		GrantType(oauth2.AuthorizationCodeGrant).
		AuthorizedScopes(scopes...).
		Attribute(authorization.AttributeAuthorizationRequest, &authorization.Request{
			AuthorizationURI:     params.AuthorizationURI,
			ClientID:             client.ID,
			RedirectURI:          redirectURI,
			Scopes:               scopes,
			AdditionalParameters: maps.Clone(params.AdditionalParameters),
			State:                params.State,
		}).
		Attribute(authorization.AttributePrincipal, &authorization.Principal{
			Name:        principal.Name(),
			Authorities: principal.Authorities,
		}).
		Token(code, nil)
	if params.State != "" {
		builder = builder.Attribute(authorization.AttributeState, params.State)
	}
	a, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Authorize] build authorization")
	}
	if err := as.repos.Authorizations.Save(ctx, a); err != nil {
		return nil, pkgerrors.Wrap(err, "[Authorize] save authorization")
	}

	as.logger.Debug().Str("client_id", client.ID).Str("principal", principal.Name()).Msg("authorization code issued")
	return &CodeResponse{Code: value, RedirectURI: redirectURI, State: params.State}, nil
}

// Token handles the OAuth 2.0 token request for an already authenticated client.
func (as *AuthorizationService) Token(ctx context.Context, clientAuth *authn.Authentication, params *TokenParameters) (*oauth2.TokenResponse, error) {
	client, err := as.registeredClient(ctx, clientAuth)
	if err != nil {
		return nil, err
	}

	grant, err := oauth2.ParseGrantType(params.GrantType)
	if err != nil {
		return nil, oauth2.ErrUnsupportedGrantType(err.Error())
	}
	if !client.SupportsGrant(grant) {
		return nil, oauth2.ErrUnauthorizedClient("client is not registered for the " + string(grant) + " grant")
	}

	var a *authorization.Authorization
	switch grant {
	case oauth2.AuthorizationCodeGrant:
		a, err = as.exchangeCode(ctx, client, params)
	case oauth2.PasswordGrant:
		a, err = as.passwordGrant(ctx, client, params)
	case oauth2.ClientCredentialsGrant:
		a, err = as.clientCredentialsGrant(ctx, client, params)
	case oauth2.RefreshTokenGrant:
		a, err = as.refreshGrant(ctx, client, params)
	}
	if err != nil {
		as.logger.Info().Err(err).Str("client_id", client.ID).Str("grant_type", string(grant)).Msg("token request refused")
		return nil, err
	}

	as.events.Publish(ctx, Event{
		Type:      EventTokenIssued,
		ClientID:  client.ID,
		Subject:   a.PrincipalName(),
		GrantType: grant,
		Scopes:    a.AuthorizedScopes(),
		At:        as.nowTime(),
	})
	return as.tokenResponse(a)
}

func (as *AuthorizationService) exchangeCode(ctx context.Context, client *clients.Client, params *TokenParameters) (*authorization.Authorization, error) {
	if params.Code == "" {
		return nil, oauth2.ErrInvalidRequest("code is required")
	}

	now := as.nowTime()
	a, err := as.repos.Authorizations.ConsumeAuthorizationCode(ctx, params.Code, now)
	switch {
	case errors.Is(err, authorization.ErrCodeConsumed):
		as.revokeReplayedGrant(ctx, a)
		return nil, apperrors.NewInvalidGrant("authorization code has already been used", err)
	case errors.Is(err, authorization.ErrCodeExpired):
		return nil, apperrors.NewInvalidGrant("authorization code has expired", err)
	case errors.Is(err, authorization.ErrAuthorizationNotFound):
		return nil, apperrors.NewInvalidGrant("invalid authorization code", err)
	case err != nil:
		return nil, pkgerrors.Wrap(err, "[exchangeCode] ConsumeAuthorizationCode")
	}

	if a.RegisteredClientID() != client.ID {
		return nil, apperrors.NewInvalidGrant("authorization code was issued to another client", ErrTokenIssuedToAnother)
	}
	if req := a.Request(); req != nil && req.RedirectURI != params.RedirectURI {
		return nil, apperrors.NewInvalidGrant("redirect_uri does not match the authorization request", nil)
	}

	issued, err := as.issue(ctx, a.ToBuilder(), client, a.PrincipalName(), a.AuthorizedScopes(), client.SupportsGrant(oauth2.RefreshTokenGrant))
	if errors.Is(err, authorization.ErrAuthorizationRevoked) {
		return nil, apperrors.NewInvalidGrant("authorization code has already been used", err)
	}
	return issued, err
}

// revokeReplayedGrant invalidates every token already issued from a code that is presented
// twice. The store refuses any later save of the grant, so an exchange still in flight
// cannot bring its tokens back.
func (as *AuthorizationService) revokeReplayedGrant(ctx context.Context, a *authorization.Authorization) {
	if a == nil {
		return
	}
	revoked, err := as.repos.Authorizations.Revoke(ctx, a.ID())
	if err != nil {
		as.logger.Error().Err(err).Str("authorization_id", a.ID()).Msg("failed to revoke replayed grant")
	} else if access, err := revoked.Token(token.KindAccessToken); err == nil {
		as.rememberRevoked(access.Value())
	}
	as.logger.Warn().Str("authorization_id", a.ID()).Str("client_id", a.RegisteredClientID()).Msg("authorization code replayed, grant revoked")
	as.events.Publish(ctx, Event{
		Type:      EventCodeReplayed,
		ClientID:  a.RegisteredClientID(),
		Subject:   a.PrincipalName(),
		GrantType: oauth2.AuthorizationCodeGrant,
		At:        as.nowTime(),
	})
}

func (as *AuthorizationService) passwordGrant(ctx context.Context, client *clients.Client, params *TokenParameters) (*authorization.Authorization, error) {
	if as.owners == nil {
		return nil, oauth2.ErrUnsupportedGrantType(ErrPasswordGrantDisabled.Error())
	}
	if params.Username == "" || params.Password == "" {
		return nil, oauth2.ErrInvalidRequest("username and password are required")
	}
	scopes, err := narrowScopes(params.Scope, client.Scopes)
	if err != nil {
		return nil, err
	}

	owner, err := as.owners.Authenticate(ctx, authn.UsernamePassword(params.Username, params.Password))
	if err != nil {
		if apperrors.IsAuthenticationFailure(err) || errors.Is(err, apperrors.ErrProviderNotFound) {
			return nil, apperrors.NewInvalidGrant("bad resource owner credentials", err)
		}
		return nil, pkgerrors.Wrap(err, "[passwordGrant] Authenticate")
	}

	builder := authorization.WithRegisteredClient(client).
		PrincipalName(owner.Name()).
		GrantType(oauth2.PasswordGrant).
		AuthorizedScopes(scopes...).
		Attribute(authorization.AttributePrincipal, &authorization.Principal{
			Name:        owner.Name(),
			Authorities: owner.Authorities,
		})
	return as.issue(ctx, builder, client, owner.Name(), scopes, client.SupportsGrant(oauth2.RefreshTokenGrant))
}

func (as *AuthorizationService) clientCredentialsGrant(ctx context.Context, client *clients.Client, params *TokenParameters) (*authorization.Authorization, error) {
	scopes, err := narrowScopes(params.Scope, client.Scopes)
	if err != nil {
		return nil, err
	}
	builder := authorization.WithRegisteredClient(client).
		PrincipalName(client.ID).
		GrantType(oauth2.ClientCredentialsGrant).
		AuthorizedScopes(scopes...)
	return as.issue(ctx, builder, client, client.ID, scopes, false)
}

func (as *AuthorizationService) refreshGrant(ctx context.Context, client *clients.Client, params *TokenParameters) (*authorization.Authorization, error) {
	if params.RefreshToken == "" {
		return nil, oauth2.ErrInvalidRequest("refresh_token is required")
	}

	a, err := as.repos.Authorizations.FindByToken(ctx, params.RefreshToken, token.KindRefreshToken)
	if errors.Is(err, authorization.ErrAuthorizationNotFound) {
		return nil, apperrors.NewInvalidGrant("invalid refresh token", apperrors.ErrInvalidToken)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[refreshGrant] FindByToken")
	}
	if a.RegisteredClientID() != client.ID {
		return nil, apperrors.NewInvalidGrant("refresh token was issued to another client", ErrTokenIssuedToAnother)
	}
	refresh, err := a.Token(token.KindRefreshToken)
	if err != nil {
		return nil, apperrors.NewInvalidGrant("invalid refresh token", apperrors.ErrInvalidToken)
	}
	if refresh.IsInvalidated() {
		return nil, apperrors.NewInvalidGrant("refresh token has been revoked", apperrors.ErrTokenRevoked)
	}
	if refresh.Value().IsExpired(as.nowTime()) {
		return nil, apperrors.NewInvalidGrant("refresh token has expired", apperrors.ErrTokenExpired)
	}

	scopes, err := narrowScopes(params.Scope, a.AuthorizedScopes())
	if err != nil {
		return nil, err
	}

	if previous, err := a.Token(token.KindAccessToken); err == nil && !previous.IsInvalidated() {
		as.rememberRevoked(previous.Value())
	}
	issued, err := as.issue(ctx, a.ToBuilder().AuthorizedScopes(scopes...), client, a.PrincipalName(), scopes, true)
	if errors.Is(err, authorization.ErrAuthorizationRevoked) {
		return nil, apperrors.NewInvalidGrant("refresh token has been revoked", apperrors.ErrTokenRevoked)
	}
	return issued, err
}

// issue generates the access token, and optionally a refresh token, adds them to the
// builder and saves the result. Tokens of the same kind already on the builder are replaced.
func (as *AuthorizationService) issue(
	ctx context.Context,
	builder *authorization.Builder,
	client *clients.Client,
	subject string,
	scopes []string,
	withRefresh bool,
) (*authorization.Authorization, error) {
	now := as.nowTime()
	accessExp := now.Add(as.settings.AccessTokenTTL)

	value, err := as.accessTokens.Generate(ctx, token.GenerateRequest{
		Kind:      token.KindAccessToken,
		ClientID:  client.ID,
		Subject:   subject,
		Scopes:    scopes,
		IssuedAt:  now,
		ExpiresAt: accessExp,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[issue] generate access token")
	}
	access, err := token.NewAccessToken(token.TypeBearer, value, now, accessExp, scopes...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[issue] NewAccessToken")
	}
	builder = builder.Token(access, authorization.WithClaims(map[string]any{
		"sub":       subject,
		"client_id": client.ID,
		"scope":     oauth2.FormatScope(scopes),
	}))

	if withRefresh {
		refreshExp := now.Add(as.settings.RefreshTokenTTL)
		value, err := as.opaque.Generate(ctx, token.GenerateRequest{
			Kind:      token.KindRefreshToken,
			ClientID:  client.ID,
			Subject:   subject,
			IssuedAt:  now,
			ExpiresAt: refreshExp,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(err, "[issue] generate refresh token")
		}
		refresh, err := token.NewRefreshToken(value, now, refreshExp)
		if err != nil {
			return nil, pkgerrors.Wrap(err, "[issue] NewRefreshToken")
		}
		builder = builder.Token(refresh, nil)
	}

	a, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[issue] build authorization")
	}
	if err := as.repos.Authorizations.Save(ctx, a); err != nil {
		return nil, pkgerrors.Wrap(err, "[issue] save authorization")
	}
	return a, nil
}

func (as *AuthorizationService) tokenResponse(a *authorization.Authorization) (*oauth2.TokenResponse, error) {
	access, ok := a.AccessToken()
	if !ok {
		return nil, pkgerrors.Wrap(apperrors.ErrInternal, "[tokenResponse] authorization holds no access token")
	}
	resp := &oauth2.TokenResponse{
		AccessToken: access.Value(),
		TokenType:   oauth2.BearerTokenType,
		ExpiresIn:   token.ExpiresIn(access, as.nowTime()),
		Scope:       oauth2.FormatScope(access.Scopes()),
	}
	if refresh, err := a.Token(token.KindRefreshToken); err == nil && !refresh.IsInvalidated() {
		value := refresh.Value().Value()
		resp.RefreshToken = &value
	}
	return resp, nil
}

// Revoke implements token revocation. Unknown tokens are ignored. Revoking a refresh
// token revokes the whole grant; revoking an access token leaves the refresh token usable.
func (as *AuthorizationService) Revoke(ctx context.Context, clientAuth *authn.Authentication, value, hint string) error {
	client, err := as.registeredClient(ctx, clientAuth)
	if err != nil {
		return err
	}
	if value == "" {
		return oauth2.ErrInvalidRequest("token is required")
	}

	kinds := []token.Kind{token.KindAccessToken, token.KindRefreshToken}
	if hint == string(token.KindRefreshToken) {
		kinds = []token.Kind{token.KindRefreshToken, token.KindAccessToken}
	}

	for _, kind := range kinds {
		a, err := as.repos.Authorizations.FindByToken(ctx, value, kind)
		if errors.Is(err, authorization.ErrAuthorizationNotFound) {
			continue
		}
		if err != nil {
			return pkgerrors.Wrap(err, "[Revoke] FindByToken")
		}
		if a.RegisteredClientID() != client.ID {
			return oauth2.ErrUnauthorizedClient(ErrTokenIssuedToAnother.Error())
		}

		var updated *authorization.Authorization
		if kind == token.KindRefreshToken {
			if access, err := a.Token(token.KindAccessToken); err == nil && !access.IsInvalidated() {
				as.rememberRevoked(access.Value())
			}
			updated = a.InvalidateAll()
		} else {
			if access, err := a.Token(token.KindAccessToken); err == nil {
				as.rememberRevoked(access.Value())
			}
			if updated, err = a.Invalidate(token.KindAccessToken); err != nil {
				return pkgerrors.Wrap(err, "[Revoke] Invalidate")
			}
		}
		if err := as.repos.Authorizations.Save(ctx, updated); err != nil {
			return pkgerrors.Wrap(err, "[Revoke] save authorization")
		}

		as.events.Publish(ctx, Event{
			Type:      EventTokenRevoked,
			ClientID:  client.ID,
			Subject:   a.PrincipalName(),
			GrantType: a.GrantType(),
			At:        as.nowTime(),
		})
		return nil
	}
	return nil
}

// CheckToken introspects an access token. Unknown, expired and revoked tokens are
// reported inactive rather than as errors.
func (as *AuthorizationService) CheckToken(ctx context.Context, value string) (*oauth2.TokenIntrospection, error) {
	inactive := &oauth2.TokenIntrospection{Active: false}
	if value == "" {
		return nil, oauth2.ErrInvalidRequest("token is required")
	}

	a, err := as.repos.Authorizations.FindByToken(ctx, value, token.KindAccessToken)
	if errors.Is(err, authorization.ErrAuthorizationNotFound) {
		return inactive, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[CheckToken] FindByToken")
	}

	stored, err := a.Token(token.KindAccessToken)
	if err != nil || !stored.IsActive(as.nowTime()) || as.isRevoked(value) {
		return inactive, nil
	}

	access, _ := a.AccessToken()
	return &oauth2.TokenIntrospection{
		Active:    true,
		ClientID:  a.RegisteredClientID(),
		Subject:   a.PrincipalName(),
		Scope:     oauth2.FormatScope(access.Scopes()),
		TokenType: oauth2.BearerTokenType,
		GrantType: a.GrantType(),
		IssuedAt:  access.IssuedAt().Unix(),
		ExpiresAt: access.ExpiresAt().Unix(),
	}, nil
}

// TokenKey returns the key resource servers use to verify signed access tokens.
func (as *AuthorizationService) TokenKey() (token.KeyInfo, error) {
	jg, ok := as.accessTokens.(*token.JWTGenerator)
	if !ok {
		return token.KeyInfo{}, ErrTokenKeyUnavailable
	}
	return jg.Signer().KeyInfo(), nil
}

// CleanupRevokedTokens removes expired entries from the revocation cache
func (as *AuthorizationService) CleanupRevokedTokens() {
	if as.revoked != nil {
		as.revoked.Cleanup()
	}
}

func (as *AuthorizationService) registeredClient(ctx context.Context, clientAuth *authn.Authentication) (*clients.Client, error) {
	if clientAuth == nil || !clientAuth.Authenticated {
		return nil, apperrors.AuthenticationFailed("client authentication required", ErrUnauthenticatedClient)
	}
	client, err := as.repos.Clients.Get(ctx, clientAuth.Name())
	if errors.Is(err, clients.ErrClientNotFound) {
		return nil, oauth2.ErrInvalidClient("unknown client").WithCause(apperrors.ErrInvalidClient)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[registeredClient] Clients.Get")
	}
	return client, nil
}

// rememberRevoked records the id of a signed access token so that copies verified
// offline can be refused until they expire.
func (as *AuthorizationService) rememberRevoked(v token.Value) {
	jg, ok := as.accessTokens.(*token.JWTGenerator)
	if !ok || as.revoked == nil {
		return
	}
	claims, err := jg.Verify(v.Value())
	if err != nil {
		return
	}
	if err := as.revoked.Add(claims.ID, claims.ExpiresAt); err != nil {
		as.logger.Warn().Err(err).Msg("failed to record revoked token")
	}
}

func (as *AuthorizationService) isRevoked(value string) bool {
	jg, ok := as.accessTokens.(*token.JWTGenerator)
	if !ok || as.revoked == nil {
		return false
	}
	claims, err := jg.Verify(value)
	if err != nil {
		return true
	}
	return as.revoked.IsRevoked(claims.ID)
}
