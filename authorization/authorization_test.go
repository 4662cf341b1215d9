package authorization_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jrsteele09/go-authserver-security/authorization"
	"github.com/jrsteele09/go-authserver-security/clients"
	"github.com/jrsteele09/go-authserver-security/oauth2"
	"github.com/jrsteele09/go-authserver-security/token"
	"github.com/stretchr/testify/require"
)

const (
	testClientID    = "registration-1"
	testPrincipal   = "principal"
	testRedirectURI = "https://example.com/callback"
	testState       = "state"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func testClient() *clients.Client {
	return &clients.Client{
		ID:           testClientID,
		Type:         clients.ClientTypeConfidential,
		Secret:       "secret",
		RedirectURIs: []string{testRedirectURI},
		Scopes:       []string{"scope1", "scope2"},
		GrantTypes:   []oauth2.GrantType{oauth2.AuthorizationCodeGrant, oauth2.RefreshTokenGrant},
	}
}

func testRequest() *authorization.Request {
	return &authorization.Request{
		AuthorizationURI: "https://provider.com/oauth2/authorize",
		ClientID:         testClientID,
		RedirectURI:      testRedirectURI,
		Scopes:           []string{"scope1"},
		State:            testState,
	}
}

func mustCode(t *testing.T, value string) *token.AuthorizationCode {
	t.Helper()
	c, err := token.NewAuthorizationCode(value, now, now.Add(120*time.Second))
	require.NoError(t, err)
	return c
}

func mustAccess(t *testing.T, value string, ttl time.Duration) *token.AccessToken {
	t.Helper()
	at, err := token.NewAccessToken(token.TypeBearer, value, now, now.Add(ttl), "scope1")
	require.NoError(t, err)
	return at
}

func mustRefresh(t *testing.T, value string, ttl time.Duration) *token.RefreshToken {
	t.Helper()
	rt, err := token.NewRefreshToken(value, now, now.Add(ttl))
	require.NoError(t, err)
	return rt
}

func defaultClaims() map[string]any {
	return map[string]any{"claim1": "value1", "claim2": "value2", "claim3": "value3"}
}

// fullAuthorization mirrors a completed authorization_code flow.
func fullAuthorization(t *testing.T) *authorization.Authorization {
	t.Helper()
	a, err := authorization.WithRegisteredClient(testClient()).
		ID("id").
		PrincipalName(testPrincipal).
		GrantType(oauth2.AuthorizationCodeGrant).
		AuthorizedScopes("scope1").
		Attribute(authorization.AttributeState, testState).
		Attribute(authorization.AttributeAuthorizationRequest, testRequest()).
		Attribute(authorization.AttributePrincipal, &authorization.Principal{Name: testPrincipal}).
		Token(mustCode(t, "code"), nil).
		Token(mustAccess(t, "access-token", 300*time.Second), authorization.WithClaims(defaultClaims())).
		Token(mustRefresh(t, "refresh-token", time.Hour), nil).
		Build()
	require.NoError(t, err)
	return a
}

func TestBuilder(t *testing.T) {
	t.Run("generates id", func(t *testing.T) {
		a, err := authorization.WithRegisteredClient(testClient()).Build()
		require.NoError(t, err)
		require.NotEmpty(t, a.ID())
		require.Equal(t, testClientID, a.RegisteredClientID())
		require.Equal(t, authorization.StatePending, a.State(now))
	})

	t.Run("client is required", func(t *testing.T) {
		_, err := authorization.WithRegisteredClient(nil).Build()
		require.ErrorIs(t, err, authorization.ErrMissingClient)
	})

	t.Run("scopes collapse to a set", func(t *testing.T) {
		a, err := authorization.WithRegisteredClient(testClient()).
			AuthorizedScopes("scope2", "scope1", "scope2").
			Build()
		require.NoError(t, err)
		require.Equal(t, []string{"scope1", "scope2"}, a.AuthorizedScopes())
	})

	t.Run("scopes must come from request or client", func(t *testing.T) {
		_, err := authorization.WithRegisteredClient(testClient()).
			AuthorizedScopes("admin").
			Build()
		require.ErrorIs(t, err, authorization.ErrScopeNotAllowed)

		req := testRequest()
		req.Scopes = []string{"admin"}
		a, err := authorization.WithRegisteredClient(testClient()).
			Attribute(authorization.AttributeAuthorizationRequest, req).
			AuthorizedScopes("admin").
			Build()
		require.NoError(t, err)
		require.Equal(t, []string{"admin"}, a.AuthorizedScopes())
	})

	t.Run("access token needs principal", func(t *testing.T) {
		_, err := authorization.WithRegisteredClient(testClient()).
			Token(mustAccess(t, "access", time.Minute), nil).
			Build()
		require.ErrorIs(t, err, authorization.ErrMissingPrincipal)
	})

	t.Run("refresh must outlive access", func(t *testing.T) {
		_, err := authorization.WithRegisteredClient(testClient()).
			PrincipalName(testPrincipal).
			Token(mustAccess(t, "access", time.Hour), nil).
			Token(mustRefresh(t, "refresh", time.Hour), nil).
			Build()
		require.ErrorIs(t, err, authorization.ErrRefreshOutlivesAccess)
	})
}

func TestMetadataDefaults(t *testing.T) {
	a := fullAuthorization(t)

	code, err := a.Token(token.KindAuthorizationCode)
	require.NoError(t, err)
	require.False(t, code.IsInvalidated())
	require.Empty(t, code.Claims())
	require.Contains(t, code.Metadata(), authorization.MetadataClaims)

	access, err := a.Token(token.KindAccessToken)
	require.NoError(t, err)
	require.Equal(t, defaultClaims(), access.Claims())
	require.Equal(t, false, access.Metadata()[authorization.MetadataInvalidated])
}

func TestWithTokenReplaces(t *testing.T) {
	a := fullAuthorization(t)

	first, err := a.WithToken(mustAccess(t, "access-1", 5*time.Minute), nil)
	require.NoError(t, err)
	second, err := first.WithToken(mustAccess(t, "access-2", 5*time.Minute), nil)
	require.NoError(t, err)

	got, err := second.Token(token.KindAccessToken)
	require.NoError(t, err)
	require.Equal(t, "access-2", got.Value().Value())
	require.Len(t, second.Tokens(), 3)

	// the receiver is untouched
	orig, err := a.Token(token.KindAccessToken)
	require.NoError(t, err)
	require.Equal(t, "access-token", orig.Value().Value())
}

func TestTokenNotFound(t *testing.T) {
	a, err := authorization.WithRegisteredClient(testClient()).Build()
	require.NoError(t, err)

	_, err = a.Token(token.KindRefreshToken)
	require.ErrorIs(t, err, authorization.ErrTokenNotFound)

	_, err = a.Invalidate(token.KindRefreshToken)
	require.ErrorIs(t, err, authorization.ErrTokenNotFound)
}

func TestInvalidateIsIdempotent(t *testing.T) {
	a := fullAuthorization(t)

	once, err := a.Invalidate(token.KindAccessToken)
	require.NoError(t, err)
	twice, err := once.Invalidate(token.KindAccessToken)
	require.NoError(t, err)
	require.Same(t, once, twice)

	access, err := twice.Token(token.KindAccessToken)
	require.NoError(t, err)
	require.True(t, access.IsInvalidated())
	require.False(t, access.IsActive(now))

	// refresh token still active, so the grant can continue
	require.Equal(t, authorization.StateActive, twice.State(now))
}

func TestState(t *testing.T) {
	b := authorization.WithRegisteredClient(testClient()).PrincipalName(testPrincipal)

	pending, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, authorization.StatePending, pending.State(now))

	issued, err := pending.WithToken(mustCode(t, "code"), nil)
	require.NoError(t, err)
	require.Equal(t, authorization.StateCodeIssued, issued.State(now))
	require.Equal(t, authorization.StateExpired, issued.State(now.Add(2*time.Minute)))

	consumed, err := issued.Invalidate(token.KindAuthorizationCode)
	require.NoError(t, err)
	require.Equal(t, authorization.StateInvalidated, consumed.State(now))

	active, err := consumed.WithToken(mustAccess(t, "access", 5*time.Minute), nil)
	require.NoError(t, err)
	require.Equal(t, authorization.StateActive, active.State(now))
	require.Equal(t, authorization.StateExpired, active.State(now.Add(5*time.Minute)))

	revoked := active.InvalidateAll()
	require.Equal(t, authorization.StateInvalidated, revoked.State(now))
	require.True(t, revoked.State(now).Terminal())
}

func TestJSONRoundTrip(t *testing.T) {
	a, err := fullAuthorization(t).Invalidate(token.KindAuthorizationCode)
	require.NoError(t, err)

	data, err := json.Marshal(a)
	require.NoError(t, err)

	var back authorization.Authorization
	require.NoError(t, json.Unmarshal(data, &back))

	require.Equal(t, a.ID(), back.ID())
	require.Equal(t, a.PrincipalName(), back.PrincipalName())
	require.Equal(t, a.GrantType(), back.GrantType())
	require.Equal(t, a.AuthorizedScopes(), back.AuthorizedScopes())
	require.Equal(t, testRequest(), back.Request())

	state, ok := back.Attribute(authorization.AttributeState)
	require.True(t, ok)
	require.Equal(t, testState, state)

	principal, ok := back.Attribute(authorization.AttributePrincipal)
	require.True(t, ok)
	require.Equal(t, &authorization.Principal{Name: testPrincipal}, principal)

	code, err := back.Token(token.KindAuthorizationCode)
	require.NoError(t, err)
	require.True(t, code.IsInvalidated())

	access, err := back.Token(token.KindAccessToken)
	require.NoError(t, err)
	require.Equal(t, defaultClaims(), access.Claims())
	require.True(t, access.Value().ExpiresAt().Equal(now.Add(300*time.Second)))
}
