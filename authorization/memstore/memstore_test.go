package memstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-authserver-security/authorization"
	"github.com/jrsteele09/go-authserver-security/authorization/memstore"
	"github.com/jrsteele09/go-authserver-security/clients"
	"github.com/jrsteele09/go-authserver-security/token"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func codeIssued(t *testing.T, code string) *authorization.Authorization {
	t.Helper()
	c, err := token.NewAuthorizationCode(code, now, now.Add(2*time.Minute))
	require.NoError(t, err)
	a, err := authorization.WithRegisteredClient(&clients.Client{ID: "client-1"}).
		PrincipalName("alice").
		Token(c, nil).
		Build()
	require.NoError(t, err)
	return a
}

func TestLookups(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	a := codeIssued(t, "code-1")
	require.NoError(t, store.Save(ctx, a))

	byID, err := store.FindByID(ctx, a.ID())
	require.NoError(t, err)
	require.Equal(t, a.ID(), byID.ID())

	byCode, err := store.FindByToken(ctx, "code-1", token.KindAuthorizationCode)
	require.NoError(t, err)
	require.Equal(t, a.ID(), byCode.ID())

	_, err = store.FindByToken(ctx, "code-1", token.KindAccessToken)
	require.ErrorIs(t, err, authorization.ErrAuthorizationNotFound)

	at, err := token.NewAccessToken(token.TypeBearer, "access-1", now, now.Add(time.Hour))
	require.NoError(t, err)
	rt, err := token.NewRefreshToken("refresh-1", now, now.Add(24*time.Hour))
	require.NoError(t, err)
	withTokens, err := a.ToBuilder().Token(at, nil).Token(rt, nil).Build()
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, withTokens))

	for _, value := range []string{"code-1", "access-1", "refresh-1"} {
		found, err := store.FindByToken(ctx, value, "")
		require.NoError(t, err)
		require.Equal(t, a.ID(), found.ID())
	}

	// replacing the access token drops the old index entry
	at2, err := token.NewAccessToken(token.TypeBearer, "access-2", now, now.Add(time.Hour))
	require.NoError(t, err)
	rotated, err := withTokens.WithToken(at2, nil)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, rotated))
	_, err = store.FindByToken(ctx, "access-1", token.KindAccessToken)
	require.ErrorIs(t, err, authorization.ErrAuthorizationNotFound)

	require.NoError(t, store.Remove(ctx, a.ID()))
	_, err = store.FindByToken(ctx, "access-2", "")
	require.ErrorIs(t, err, authorization.ErrAuthorizationNotFound)
}

func TestConsumeAuthorizationCode(t *testing.T) {
	ctx := context.Background()

	t.Run("second consumption fails", func(t *testing.T) {
		store := memstore.New()
		require.NoError(t, store.Save(ctx, codeIssued(t, "code-1")))

		first, err := store.ConsumeAuthorizationCode(ctx, "code-1", now)
		require.NoError(t, err)
		code, err := first.Token(token.KindAuthorizationCode)
		require.NoError(t, err)
		require.True(t, code.IsInvalidated())

		again, err := store.ConsumeAuthorizationCode(ctx, "code-1", now)
		require.ErrorIs(t, err, authorization.ErrCodeConsumed)
		require.Equal(t, first.ID(), again.ID())
	})

	t.Run("expired code", func(t *testing.T) {
		store := memstore.New()
		require.NoError(t, store.Save(ctx, codeIssued(t, "code-1")))
		_, err := store.ConsumeAuthorizationCode(ctx, "code-1", now.Add(2*time.Minute))
		require.ErrorIs(t, err, authorization.ErrCodeExpired)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := memstore.New().ConsumeAuthorizationCode(ctx, "nope", now)
		require.ErrorIs(t, err, authorization.ErrAuthorizationNotFound)
	})

	t.Run("concurrent exchange issues one access token", func(t *testing.T) {
		store := memstore.New()
		require.NoError(t, store.Save(ctx, codeIssued(t, "code-1")))

		const attempts = 32
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners int
		)
		for i := range attempts {
			wg.Add(1)
			go func() {
				defer wg.Done()
				a, err := store.ConsumeAuthorizationCode(ctx, "code-1", now)
				if err != nil {
					return
				}
				at, err := token.NewAccessToken(token.TypeBearer, "access-"+string(rune('a'+i)), now, now.Add(time.Hour))
				if err != nil {
					return
				}
				issued, err := a.WithToken(at, nil)
				if err != nil {
					return
				}
				_ = store.Save(ctx, issued)
				mu.Lock()
				winners++
				mu.Unlock()
			}()
		}
		wg.Wait()

		require.Equal(t, 1, winners)
		a, err := store.FindByToken(ctx, "code-1", token.KindAuthorizationCode)
		require.NoError(t, err)
		access, err := a.Token(token.KindAccessToken)
		require.NoError(t, err)
		require.True(t, access.IsActive(now))
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	a := codeIssued(t, "code-1")
	require.NoError(t, store.Save(ctx, a))

	at, err := token.NewAccessToken(token.TypeBearer, "access-1", now, now.Add(time.Hour))
	require.NoError(t, err)
	inFlight, err := a.WithToken(at, nil)
	require.NoError(t, err)

	revoked, err := store.Revoke(ctx, a.ID())
	require.NoError(t, err)
	require.False(t, revoked.HasLiveTokens())

	// a save prepared before the revocation must not bring live tokens back
	require.ErrorIs(t, store.Save(ctx, inFlight), authorization.ErrAuthorizationRevoked)
	stored, err := store.FindByID(ctx, a.ID())
	require.NoError(t, err)
	require.Equal(t, authorization.StateInvalidated, stored.State(now))
	_, err = store.FindByToken(ctx, "access-1", token.KindAccessToken)
	require.ErrorIs(t, err, authorization.ErrAuthorizationNotFound)

	require.NoError(t, store.Save(ctx, inFlight.InvalidateAll()))

	_, err = store.Revoke(ctx, "missing")
	require.ErrorIs(t, err, authorization.ErrAuthorizationNotFound)
}
