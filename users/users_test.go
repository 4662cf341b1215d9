package users_test

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-authserver-security/users"
	fakeuserrepo "github.com/jrsteele09/go-authserver-security/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := users.HashPassword("Password123")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Password123", hash))
	require.False(t, users.CheckPasswordHash("password123", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Password123"))
	require.Error(t, users.ValidatePasswordStrength("short1A"))
	require.Error(t, users.ValidatePasswordStrength("alllowercase1"))
	require.Error(t, users.ValidatePasswordStrength("NoNumbersHere"))
}

func TestFakeUserRepo(t *testing.T) {
	ctx := context.Background()
	repo := fakeuserrepo.NewFakeUserRepo()
	require.NoError(t, repo.Upsert(ctx, &users.User{Username: "alice", Verified: true}))

	u, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	require.True(t, u.Enabled())

	byID, err := repo.GetByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)

	require.NoError(t, repo.Delete(ctx, "alice"))
	_, err = repo.GetByUsername(ctx, "alice")
	require.ErrorIs(t, err, users.ErrUserNotFound)
}
