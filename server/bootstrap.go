package server

import (
	"context"
	"strings"

	"github.com/jrsteele09/go-authserver-security/users"
	"github.com/pkg/errors"
)

// Bootstrap registers the clients and resource owners listed in the configuration.
// Existing registrations with the same id or username are replaced.
func (s *Server) Bootstrap() error {
	ctx := context.Background()

	for _, seed := range s.config.GetSeedClients() {
		if seed == nil {
			continue
		}
		client := *seed
		if err := client.Validate(); err != nil {
			return errors.Wrap(err, "[Bootstrap] client")
		}
		if client.Secret != "" && !isBcryptHash(client.Secret) {
			hash, err := users.HashPassword(client.Secret)
			if err != nil {
				return errors.Wrapf(err, "[Bootstrap] hash secret for %s", client.ID)
			}
			client.Secret = hash
		}
		if err := s.repos.Clients.Upsert(ctx, &client); err != nil {
			return errors.Wrapf(err, "[Bootstrap] register client %s", client.ID)
		}
		s.logger.Info().Str("client_id", client.ID).Str("type", string(client.Type)).Msg("registered client")
	}

	seedUsers := s.config.GetSeedUsers()
	if len(seedUsers) == 0 {
		return nil
	}
	if s.repos.Users == nil {
		return errors.New("[Bootstrap] users are configured but no user repository was given")
	}
	for _, seed := range seedUsers {
		if err := users.ValidatePasswordStrength(seed.Password); err != nil {
			return errors.Wrapf(err, "[Bootstrap] user %s", seed.Username)
		}
		hash, err := users.HashPassword(seed.Password)
		if err != nil {
			return errors.Wrapf(err, "[Bootstrap] hash password for %s", seed.Username)
		}
		owner := &users.User{
			Username:     seed.Username,
			Email:        seed.Email,
			PasswordHash: hash,
			Authorities:  seed.Authorities,
			Verified:     true,
		}
		if existing, err := s.repos.Users.GetByUsername(ctx, seed.Username); err == nil {
			owner.ID = existing.ID
		}
		if err := s.repos.Users.Upsert(ctx, owner); err != nil {
			return errors.Wrapf(err, "[Bootstrap] register user %s", seed.Username)
		}
		s.logger.Info().Str("username", owner.Username).Msg("registered resource owner")
	}
	return nil
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
