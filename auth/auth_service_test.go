package auth_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-authserver-security/auth"
	"github.com/jrsteele09/go-authserver-security/authn"
	"github.com/jrsteele09/go-authserver-security/authorization"
	"github.com/jrsteele09/go-authserver-security/authorization/memstore"
	"github.com/jrsteele09/go-authserver-security/clients"
	fakeclientrepo "github.com/jrsteele09/go-authserver-security/clients/fakerepo"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/jrsteele09/go-authserver-security/token"
	"github.com/jrsteele09/go-authserver-security/users"
	fakeuserrepo "github.com/jrsteele09/go-authserver-security/users/repofake"
	"github.com/stretchr/testify/require"
)

const (
	testClientID     = "test-client-1"
	otherClientID    = "test-client-2"
	serviceClientID  = "service-client"
	testUsername     = "john.doe"
	testUserPassword = "Password123"
	testRedirectURI  = "http://localhost:3000/callback"
	testState        = "random-state-value"
)

// testFixture holds all test dependencies
type testFixture struct {
	clientRepo clients.Repo
	userRepo   users.Repo
	store      authorization.Store
	service    *auth.AuthorizationService
	events     *eventRecorder
	now        time.Time
}

type eventRecorder struct {
	lock   sync.Mutex
	events []auth.Event
}

func (r *eventRecorder) Publish(_ context.Context, e auth.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) types() []auth.EventType {
	r.lock.Lock()
	defer r.lock.Unlock()
	out := make([]auth.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// pausingStore holds the first save that carries an access token until release is closed.
type pausingStore struct {
	authorization.Store
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (s *pausingStore) Save(ctx context.Context, a *authorization.Authorization) error {
	if _, ok := a.AccessToken(); ok {
		paused := false
		s.once.Do(func() { paused = true })
		if paused {
			close(s.reached)
			<-s.release
		}
	}
	return s.Store.Save(ctx, a)
}

// setupTestFixture creates a new test fixture with all dependencies
func setupTestFixture(t *testing.T, opts ...auth.AuthorizationServiceOption) *testFixture {
	t.Helper()

	f := &testFixture{
		clientRepo: fakeclientrepo.NewFakeClientRepo(),
		userRepo:   fakeuserrepo.NewFakeUserRepo(),
		store:      memstore.New(),
		events:     &eventRecorder{},
		now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	ctx := context.Background()
	require.NoError(t, f.clientRepo.Upsert(ctx, &clients.Client{
		ID:           testClientID,
		Type:         clients.ClientTypeConfidential,
		Secret:       "secret-1",
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"read", "write", "admin"},
		GrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.PasswordGrant,
			oauth2.RefreshTokenGrant,
		},
	}))
	require.NoError(t, f.clientRepo.Upsert(ctx, &clients.Client{
		ID:           otherClientID,
		Type:         clients.ClientTypeConfidential,
		Secret:       "secret-2",
		RedirectURIs: []string{testRedirectURI, "http://localhost:4000/callback"},
		Scopes:       []string{"read"},
		GrantTypes:   []oauth2.GrantType{oauth2.AuthorizationCodeGrant, oauth2.RefreshTokenGrant},
	}))
	require.NoError(t, f.clientRepo.Upsert(ctx, &clients.Client{
		ID:         serviceClientID,
		Type:       clients.ClientTypeConfidential,
		Secret:     "service-secret",
		Scopes:     []string{"metrics", "events"},
		GrantTypes: []oauth2.GrantType{oauth2.ClientCredentialsGrant},
	}))

	hash, err := users.HashPassword(testUserPassword)
	require.NoError(t, err)
	require.NoError(t, f.userRepo.Upsert(ctx, &users.User{
		Username:     testUsername,
		PasswordHash: hash,
		Authorities:  []string{"ROLE_USER"},
		Verified:     true,
	}))
	require.NoError(t, f.userRepo.Upsert(ctx, &users.User{
		Username:     "blocked",
		PasswordHash: hash,
		Verified:     true,
		Blocked:      true,
	}))

	options := append([]auth.AuthorizationServiceOption{
		auth.WithNowTime(func() time.Time { return f.now }),
		auth.WithEventSink(f.events),
	}, opts...)
	service, err := auth.NewAuthorizationService(auth.Repos{
		Clients:        f.clientRepo,
		Authorizations: f.store,
		Users:          f.userRepo,
	}, options...)
	require.NoError(t, err)
	f.service = service
	return f
}

func (f *testFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func authenticated(name string, authorities ...string) *authn.Authentication {
	return &authn.Authentication{
		Kind:          authn.KindUsernamePassword,
		Principal:     name,
		Authorities:   authorities,
		Authenticated: true,
	}
}

func (f *testFixture) authorize(t *testing.T, scope string) *auth.CodeResponse {
	t.Helper()
	resp, err := f.service.Authorize(context.Background(), authenticated(testUsername, "ROLE_USER"), &auth.AuthorizationParameters{
		ResponseType: oauth2.CodeResponseType,
		ClientID:     testClientID,
		RedirectURI:  testRedirectURI,
		Scope:        scope,
		State:        testState,
	})
	require.NoError(t, err)
	return resp
}

func (f *testFixture) exchange(code, clientID string) (*oauth2.TokenResponse, error) {
	return f.service.Token(context.Background(), authenticated(clientID), &auth.TokenParameters{
		GrantType:   string(oauth2.AuthorizationCodeGrant),
		Code:        code,
		RedirectURI: testRedirectURI,
	})
}

func requireOAuthError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, oauth2.ErrorFrom(err).Code)
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()

	t.Run("issues a code bound to the request", func(t *testing.T) {
		f := setupTestFixture(t)
		resp := f.authorize(t, "read write")
		require.NotEmpty(t, resp.Code)
		require.Equal(t, testRedirectURI, resp.RedirectURI)

		a, err := f.store.FindByToken(ctx, resp.Code, token.KindAuthorizationCode)
		require.NoError(t, err)
		require.Equal(t, testUsername, a.PrincipalName())
		require.Equal(t, []string{"read", "write"}, a.AuthorizedScopes())
		require.Equal(t, authorization.StateCodeIssued, a.State(f.now))
		require.Equal(t, testState, a.Request().State)

		location, err := resp.Location()
		require.NoError(t, err)
		require.Contains(t, location, "code="+resp.Code)
		require.Contains(t, location, "state="+testState)
	})

	t.Run("records the authorization request", func(t *testing.T) {
		f := setupTestFixture(t)
		params := auth.AuthorizationParametersFromQuery(url.Values{
			"response_type": {"code"},
			"client_id":     {testClientID},
			"redirect_uri":  {testRedirectURI},
			"scope":         {"read"},
			"state":         {testState},
			"nonce":         {"n-0S6"},
			"prompt":        {"login", "consent"},
		})
		params.AuthorizationURI = "https://auth.example.com/oauth/authorize"
		resp, err := f.service.Authorize(ctx, authenticated(testUsername), params)
		require.NoError(t, err)

		a, err := f.store.FindByToken(ctx, resp.Code, token.KindAuthorizationCode)
		require.NoError(t, err)
		req := a.Request()
		require.Equal(t, "https://auth.example.com/oauth/authorize", req.AuthorizationURI)
		require.Equal(t, map[string]string{"nonce": "n-0S6"}, req.AdditionalParameters)
		require.Equal(t, []string{"read"}, req.Scopes)
	})

	t.Run("single registered redirect uri is the default", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.service.Authorize(ctx, authenticated(testUsername), &auth.AuthorizationParameters{
			ResponseType: oauth2.CodeResponseType,
			ClientID:     testClientID,
		})
		require.NoError(t, err)
		require.Equal(t, testRedirectURI, resp.RedirectURI)
	})

	t.Run("rejections", func(t *testing.T) {
		f := setupTestFixture(t)
		cases := []struct {
			name   string
			params auth.AuthorizationParameters
			code   string
		}{
			{"unknown client", auth.AuthorizationParameters{ResponseType: oauth2.CodeResponseType, ClientID: "nobody"}, oauth2.ErrorCodeInvalidClient},
			{"token response type", auth.AuthorizationParameters{ResponseType: "token", ClientID: testClientID}, oauth2.ErrorCodeUnsupportedResponse},
			{"unregistered redirect", auth.AuthorizationParameters{ResponseType: oauth2.CodeResponseType, ClientID: testClientID, RedirectURI: "https://evil.example.com"}, oauth2.ErrorCodeInvalidRequest},
			{"ambiguous redirect", auth.AuthorizationParameters{ResponseType: oauth2.CodeResponseType, ClientID: otherClientID}, oauth2.ErrorCodeInvalidRequest},
			{"scope beyond client", auth.AuthorizationParameters{ResponseType: oauth2.CodeResponseType, ClientID: testClientID, Scope: "read root"}, oauth2.ErrorCodeInvalidScope},
			{"client without code grant", auth.AuthorizationParameters{ResponseType: oauth2.CodeResponseType, ClientID: serviceClientID}, oauth2.ErrorCodeUnauthorizedClient},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				params := tc.params
				_, err := f.service.Authorize(ctx, authenticated(testUsername), &params)
				requireOAuthError(t, err, tc.code)
			})
		}

		_, err := f.service.Authorize(ctx, authenticated(testUsername), &auth.AuthorizationParameters{
			ResponseType: oauth2.CodeResponseType,
			ClientID:     testClientID,
			RedirectURI:  "https://evil.example.com",
		})
		require.ErrorIs(t, err, apperrors.ErrInvalidRedirectURI)
	})

	t.Run("requires an authenticated resource owner", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Authorize(ctx, authn.UsernamePassword(testUsername, testUserPassword), &auth.AuthorizationParameters{
			ResponseType: oauth2.CodeResponseType,
			ClientID:     testClientID,
		})
		require.ErrorIs(t, err, auth.ErrUnauthenticatedUser)
	})
}

func TestAuthorizationCodeGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("exchange issues access and refresh tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		code := f.authorize(t, "read").Code

		resp, err := f.exchange(code, testClientID)
		require.NoError(t, err)
		require.Equal(t, oauth2.BearerTokenType, resp.TokenType)
		require.Equal(t, int64(3600), resp.ExpiresIn)
		require.Equal(t, "read", resp.Scope)
		require.NotNil(t, resp.RefreshToken)

		info, err := f.service.CheckToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.True(t, info.Active)
		require.Equal(t, testUsername, info.Subject)
		require.Equal(t, testClientID, info.ClientID)
		require.Equal(t, oauth2.AuthorizationCodeGrant, info.GrantType)
		require.Equal(t, []auth.EventType{auth.EventTokenIssued}, f.events.types())
	})

	t.Run("second exchange is an invalid grant and revokes issued tokens", func(t *testing.T) {
		f := setupTestFixture(t)
		code := f.authorize(t, "").Code

		first, err := f.exchange(code, testClientID)
		require.NoError(t, err)

		_, err = f.exchange(code, testClientID)
		require.True(t, apperrors.IsInvalidGrant(err))
		require.ErrorIs(t, err, authorization.ErrCodeConsumed)
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)

		info, err := f.service.CheckToken(ctx, first.AccessToken)
		require.NoError(t, err)
		require.False(t, info.Active)

		_, err = f.service.Token(ctx, authenticated(testClientID), &auth.TokenParameters{
			GrantType:    string(oauth2.RefreshTokenGrant),
			RefreshToken: *first.RefreshToken,
		})
		require.True(t, apperrors.IsInvalidGrant(err))
		require.Contains(t, f.events.types(), auth.EventCodeReplayed)
	})

	t.Run("concurrent exchanges have at most one winner", func(t *testing.T) {
		f := setupTestFixture(t)
		code := f.authorize(t, "").Code

		const attempts = 8
		var (
			wg     sync.WaitGroup
			lock   sync.Mutex
			wins   int
			grants int
		)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.exchange(code, testClientID)
				lock.Lock()
				defer lock.Unlock()
				if err == nil {
					wins++
				} else if apperrors.IsInvalidGrant(err) {
					grants++
				}
			}()
		}
		wg.Wait()
		require.LessOrEqual(t, wins, 1)
		require.Equal(t, attempts, wins+grants)

		a, err := f.store.FindByToken(ctx, code, token.KindAuthorizationCode)
		require.NoError(t, err)
		require.False(t, a.HasLiveTokens())
	})

	t.Run("replay while the first exchange is saving revokes both", func(t *testing.T) {
		f := setupTestFixture(t)
		code := f.authorize(t, "").Code

		store := &pausingStore{Store: f.store, reached: make(chan struct{}), release: make(chan struct{})}
		service, err := auth.NewAuthorizationService(auth.Repos{
			Clients:        f.clientRepo,
			Authorizations: store,
			Users:          f.userRepo,
		}, auth.WithNowTime(func() time.Time { return f.now }))
		require.NoError(t, err)

		params := &auth.TokenParameters{GrantType: string(oauth2.AuthorizationCodeGrant), Code: code, RedirectURI: testRedirectURI}
		type result struct {
			resp *oauth2.TokenResponse
			err  error
		}
		first := make(chan result, 1)
		go func() {
			resp, err := service.Token(ctx, authenticated(testClientID), params)
			first <- result{resp, err}
		}()

		<-store.reached
		_, err = service.Token(ctx, authenticated(testClientID), params)
		require.True(t, apperrors.IsInvalidGrant(err))
		close(store.release)

		winner := <-first
		require.True(t, apperrors.IsInvalidGrant(winner.err))
		require.ErrorIs(t, winner.err, authorization.ErrAuthorizationRevoked)
		require.Nil(t, winner.resp)

		a, err := f.store.FindByToken(ctx, code, token.KindAuthorizationCode)
		require.NoError(t, err)
		require.False(t, a.HasLiveTokens())
		_, ok := a.AccessToken()
		require.False(t, ok)
	})

	t.Run("expired code", func(t *testing.T) {
		f := setupTestFixture(t)
		code := f.authorize(t, "").Code
		f.advance(auth.DefaultTokenSettings.AuthorizationCodeTTL)

		_, err := f.exchange(code, testClientID)
		require.ErrorIs(t, err, authorization.ErrCodeExpired)
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
	})

	t.Run("unknown code", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.exchange("does-not-exist", testClientID)
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
	})

	t.Run("code issued to another client", func(t *testing.T) {
		f := setupTestFixture(t)
		code := f.authorize(t, "").Code
		_, err := f.exchange(code, otherClientID)
		require.ErrorIs(t, err, auth.ErrTokenIssuedToAnother)
	})

	t.Run("redirect uri must match", func(t *testing.T) {
		f := setupTestFixture(t)
		code := f.authorize(t, "").Code
		_, err := f.service.Token(ctx, authenticated(testClientID), &auth.TokenParameters{
			GrantType:   string(oauth2.AuthorizationCodeGrant),
			Code:        code,
			RedirectURI: "http://localhost:3000/other",
		})
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
	})

	t.Run("missing code", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.exchange("", testClientID)
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidRequest)
	})
}

func TestPasswordGrant(t *testing.T) {
	ctx := context.Background()
	request := func(username, password, scope string) *auth.TokenParameters {
		return &auth.TokenParameters{
			GrantType: string(oauth2.PasswordGrant),
			Username:  username,
			Password:  password,
			Scope:     scope,
		}
	}

	t.Run("valid credentials", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.service.Token(ctx, authenticated(testClientID), request(testUsername, testUserPassword, "write"))
		require.NoError(t, err)
		require.Equal(t, "write", resp.Scope)
		require.NotNil(t, resp.RefreshToken)

		a, err := f.store.FindByToken(ctx, resp.AccessToken, token.KindAccessToken)
		require.NoError(t, err)
		require.Equal(t, testUsername, a.PrincipalName())
		principal, ok := a.Attribute(authorization.AttributePrincipal)
		require.True(t, ok)
		require.Equal(t, []string{"ROLE_USER"}, principal.(*authorization.Principal).Authorities)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Token(ctx, authenticated(testClientID), request(testUsername, "nope", ""))
		require.True(t, apperrors.IsInvalidGrant(err))
		require.ErrorIs(t, err, apperrors.ErrBadCredentials)
	})

	t.Run("unknown user looks like a wrong password", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Token(ctx, authenticated(testClientID), request("ghost", testUserPassword, ""))
		require.ErrorIs(t, err, apperrors.ErrBadCredentials)
	})

	t.Run("blocked user", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Token(ctx, authenticated(testClientID), request("blocked", testUserPassword, ""))
		require.ErrorIs(t, err, apperrors.ErrAccountDisabled)
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
	})

	t.Run("missing password", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Token(ctx, authenticated(testClientID), request(testUsername, "", ""))
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidRequest)
	})

	t.Run("disabled without a user repo", func(t *testing.T) {
		f := setupTestFixture(t)
		service, err := auth.NewAuthorizationService(auth.Repos{Clients: f.clientRepo, Authorizations: f.store})
		require.NoError(t, err)
		_, err = service.Token(ctx, authenticated(testClientID), request(testUsername, testUserPassword, ""))
		requireOAuthError(t, err, oauth2.ErrorCodeUnsupportedGrantType)
	})
}

func TestClientCredentialsGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("access token only", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.service.Token(ctx, authenticated(serviceClientID), &auth.TokenParameters{
			GrantType: string(oauth2.ClientCredentialsGrant),
		})
		require.NoError(t, err)
		require.Nil(t, resp.RefreshToken)
		require.Equal(t, "events metrics", resp.Scope)

		info, err := f.service.CheckToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, serviceClientID, info.Subject)
	})

	t.Run("scope narrowing", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.service.Token(ctx, authenticated(serviceClientID), &auth.TokenParameters{
			GrantType: string(oauth2.ClientCredentialsGrant),
			Scope:     "metrics metrics",
		})
		require.NoError(t, err)
		require.Equal(t, "metrics", resp.Scope)

		_, err = f.service.Token(ctx, authenticated(serviceClientID), &auth.TokenParameters{
			GrantType: string(oauth2.ClientCredentialsGrant),
			Scope:     "metrics admin",
		})
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidScope)
	})

	t.Run("grant not registered", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.Token(ctx, authenticated(testClientID), &auth.TokenParameters{
			GrantType: string(oauth2.ClientCredentialsGrant),
		})
		requireOAuthError(t, err, oauth2.ErrorCodeUnauthorizedClient)
	})
}

func TestRefreshTokenGrant(t *testing.T) {
	ctx := context.Background()
	refresh := func(f *testFixture, clientID, value, scope string) (*oauth2.TokenResponse, error) {
		return f.service.Token(ctx, authenticated(clientID), &auth.TokenParameters{
			GrantType:    string(oauth2.RefreshTokenGrant),
			RefreshToken: value,
			Scope:        scope,
		})
	}

	t.Run("rotates the token pair", func(t *testing.T) {
		f := setupTestFixture(t)
		first, err := f.exchange(f.authorize(t, "read write").Code, testClientID)
		require.NoError(t, err)

		f.advance(10 * time.Minute)
		second, err := refresh(f, testClientID, *first.RefreshToken, "read")
		require.NoError(t, err)
		require.NotEqual(t, first.AccessToken, second.AccessToken)
		require.NotEqual(t, *first.RefreshToken, *second.RefreshToken)
		require.Equal(t, "read", second.Scope)

		_, err = refresh(f, testClientID, *first.RefreshToken, "")
		require.True(t, apperrors.IsInvalidGrant(err))
		require.ErrorIs(t, err, apperrors.ErrInvalidToken)

		info, err := f.service.CheckToken(ctx, first.AccessToken)
		require.NoError(t, err)
		require.False(t, info.Active)
	})

	t.Run("cannot widen scope", func(t *testing.T) {
		f := setupTestFixture(t)
		first, err := f.exchange(f.authorize(t, "read").Code, testClientID)
		require.NoError(t, err)
		_, err = refresh(f, testClientID, *first.RefreshToken, "read write")
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidScope)
	})

	t.Run("other client", func(t *testing.T) {
		f := setupTestFixture(t)
		first, err := f.exchange(f.authorize(t, "read").Code, testClientID)
		require.NoError(t, err)
		_, err = refresh(f, otherClientID, *first.RefreshToken, "")
		require.ErrorIs(t, err, auth.ErrTokenIssuedToAnother)
	})

	t.Run("expired refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		first, err := f.exchange(f.authorize(t, "read").Code, testClientID)
		require.NoError(t, err)
		f.advance(auth.DefaultTokenSettings.RefreshTokenTTL)
		_, err = refresh(f, testClientID, *first.RefreshToken, "")
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
		require.ErrorIs(t, err, apperrors.ErrTokenExpired)
	})

	t.Run("revoked refresh token", func(t *testing.T) {
		f := setupTestFixture(t)
		first, err := f.exchange(f.authorize(t, "read").Code, testClientID)
		require.NoError(t, err)
		require.NoError(t, f.service.Revoke(ctx, authenticated(testClientID), *first.RefreshToken, "refresh_token"))
		_, err = refresh(f, testClientID, *first.RefreshToken, "")
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidGrant)
		require.ErrorIs(t, err, apperrors.ErrTokenRevoked)
	})
}

func TestTokenRequestValidation(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	t.Run("unsupported grant type", func(t *testing.T) {
		_, err := f.service.Token(ctx, authenticated(testClientID), &auth.TokenParameters{GrantType: "implicit"})
		requireOAuthError(t, err, oauth2.ErrorCodeUnsupportedGrantType)
	})

	t.Run("unauthenticated client", func(t *testing.T) {
		_, err := f.service.Token(ctx, authn.UsernamePassword(testClientID, "secret-1"), &auth.TokenParameters{
			GrantType: string(oauth2.ClientCredentialsGrant),
		})
		require.True(t, apperrors.IsAuthenticationFailure(err))
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidClient)
	})

	t.Run("client removed after authentication", func(t *testing.T) {
		_, err := f.service.Token(ctx, authenticated("deleted-client"), &auth.TokenParameters{
			GrantType: string(oauth2.ClientCredentialsGrant),
		})
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidClient)
	})

	t.Run("refresh must outlive access", func(t *testing.T) {
		_, err := auth.NewAuthorizationService(auth.Repos{Clients: f.clientRepo, Authorizations: f.store},
			auth.WithTokenSettings(auth.TokenSettings{
				AuthorizationCodeTTL: time.Minute,
				AccessTokenTTL:       time.Hour,
				RefreshTokenTTL:      time.Hour,
			}))
		require.True(t, apperrors.IsConfiguration(err))
	})

	t.Run("missing repos", func(t *testing.T) {
		_, err := auth.NewAuthorizationService(auth.Repos{Clients: f.clientRepo})
		require.ErrorIs(t, err, auth.ErrMissingRepo)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()

	t.Run("access token only", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.exchange(f.authorize(t, "").Code, testClientID)
		require.NoError(t, err)

		require.NoError(t, f.service.Revoke(ctx, authenticated(testClientID), resp.AccessToken, ""))
		info, err := f.service.CheckToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.False(t, info.Active)

		_, err = f.service.Token(ctx, authenticated(testClientID), &auth.TokenParameters{
			GrantType:    string(oauth2.RefreshTokenGrant),
			RefreshToken: *resp.RefreshToken,
		})
		require.NoError(t, err)
		require.Contains(t, f.events.types(), auth.EventTokenRevoked)
	})

	t.Run("refresh token revokes the grant", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.exchange(f.authorize(t, "").Code, testClientID)
		require.NoError(t, err)

		require.NoError(t, f.service.Revoke(ctx, authenticated(testClientID), *resp.RefreshToken, "refresh_token"))
		info, err := f.service.CheckToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.False(t, info.Active)

		a, err := f.store.FindByToken(ctx, *resp.RefreshToken, token.KindRefreshToken)
		require.NoError(t, err)
		require.Equal(t, authorization.StateInvalidated, a.State(f.now))
	})

	t.Run("unknown token is not an error", func(t *testing.T) {
		f := setupTestFixture(t)
		require.NoError(t, f.service.Revoke(ctx, authenticated(testClientID), "unknown", ""))
	})

	t.Run("token of another client", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.exchange(f.authorize(t, "").Code, testClientID)
		require.NoError(t, err)
		err = f.service.Revoke(ctx, authenticated(otherClientID), resp.AccessToken, "")
		requireOAuthError(t, err, oauth2.ErrorCodeUnauthorizedClient)
	})
}

func TestCheckToken(t *testing.T) {
	ctx := context.Background()

	t.Run("expired access token is inactive", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.exchange(f.authorize(t, "").Code, testClientID)
		require.NoError(t, err)
		f.advance(auth.DefaultTokenSettings.AccessTokenTTL)

		info, err := f.service.CheckToken(ctx, resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, &oauth2.TokenIntrospection{Active: false}, info)
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		f := setupTestFixture(t)
		resp, err := f.exchange(f.authorize(t, "").Code, testClientID)
		require.NoError(t, err)
		info, err := f.service.CheckToken(ctx, *resp.RefreshToken)
		require.NoError(t, err)
		require.False(t, info.Active)
	})

	t.Run("empty value", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.service.CheckToken(ctx, "")
		requireOAuthError(t, err, oauth2.ErrorCodeInvalidRequest)
	})
}

func TestSignedAccessTokens(t *testing.T) {
	ctx := context.Background()
	var f *testFixture
	clock := func() time.Time { return f.now }
	jwtGen := token.NewJWTGenerator(token.NewHMACSigner("test-signing-secret"),
		token.WithIssuer("https://auth.example.com"),
		token.WithJWTNowFunc(clock),
	)
	revoked := token.NewInMemoryRevokedTokenCache(time.Minute)
	f = setupTestFixture(t, auth.WithAccessTokenGenerator(jwtGen), auth.WithRevokedCache(revoked))

	resp, err := f.service.Token(ctx, authenticated(serviceClientID), &auth.TokenParameters{
		GrantType: string(oauth2.ClientCredentialsGrant),
	})
	require.NoError(t, err)

	claims, err := jwtGen.Verify(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, serviceClientID, claims.ClientID)
	require.Equal(t, []string{"events", "metrics"}, claims.Scopes)

	key, err := f.service.TokenKey()
	require.NoError(t, err)
	require.Equal(t, "HS256", key.Alg)

	require.NoError(t, f.service.Revoke(ctx, authenticated(serviceClientID), resp.AccessToken, ""))
	require.True(t, revoked.IsRevoked(claims.ID))

	info, err := f.service.CheckToken(ctx, resp.AccessToken)
	require.NoError(t, err)
	require.False(t, info.Active)

	t.Run("opaque tokens have no key", func(t *testing.T) {
		plain := setupTestFixture(t)
		_, err := plain.service.TokenKey()
		require.ErrorIs(t, err, auth.ErrTokenKeyUnavailable)
	})
}
