package server

import (
	"context"
	"time"

	"github.com/jrsteele09/go-authserver-security/auth"
	"github.com/jrsteele09/go-authserver-security/authorization/memstore"
	"github.com/jrsteele09/go-authserver-security/authorization/redisstore"
	"github.com/jrsteele09/go-authserver-security/clients"
	fakeclientrepo "github.com/jrsteele09/go-authserver-security/clients/fakerepo"
	"github.com/jrsteele09/go-authserver-security/internal/config"
	fakeuserrepo "github.com/jrsteele09/go-authserver-security/users/repofake"
	"github.com/pkg/errors"
)

const clientCacheTTL = 5 * time.Minute

// OpenRepos builds the repositories selected by the storage configuration. Clients and
// resource owners are held in memory; authorizations go to memory or Redis. The returned
// function releases whatever was opened.
func OpenRepos(ctx context.Context, cfg config.Config) (auth.Repos, func() error, error) {
	repos := auth.Repos{
		Clients: clients.NewCachingRepo(fakeclientrepo.NewFakeClientRepo(), clientCacheTTL),
		Users:   fakeuserrepo.NewFakeUserRepo(),
	}
	closeFn := func() error { return nil }

	switch driver := cfg.GetStorageDriver(); driver {
	case config.StorageMemory:
		repos.Authorizations = memstore.New()
	case config.StorageRedis:
		store, err := redisstore.New(ctx,
			cfg.GetRedisAddr(),
			cfg.GetRedisPassword(),
			cfg.GetRedisDB(),
			cfg.GetRedisPrefix(),
			redisstore.WithRetention(cfg.GetDefaultRefreshTokenExpiry()),
		)
		if err != nil {
			return auth.Repos{}, nil, errors.Wrap(err, "[OpenRepos] redis")
		}
		repos.Authorizations = store
		closeFn = store.Close
	default:
		return auth.Repos{}, nil, errors.Errorf("[OpenRepos] unknown storage driver %q", driver)
	}
	return repos, closeFn, nil
}
