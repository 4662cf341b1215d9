package token

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// RevokedTokenCache remembers revoked access token ids until the token would have expired anyway.
type RevokedTokenCache interface {
	Add(jti string, exp time.Time) error
	IsRevoked(jti string) bool
	Cleanup()
}

type InMemoryRevokedTokenCache struct {
	revoked *cache.Cache
	nowFunc func() time.Time
}

func NewInMemoryRevokedTokenCache(cleanupInterval time.Duration) *InMemoryRevokedTokenCache {
	return &InMemoryRevokedTokenCache{
		revoked: cache.New(cache.NoExpiration, cleanupInterval),
		nowFunc: time.Now,
	}
}

func (c *InMemoryRevokedTokenCache) Add(jti string, exp time.Time) error {
	ttl := exp.Sub(c.nowFunc())
	if ttl <= 0 {
		// already expired, nothing to remember
		return nil
	}
	c.revoked.Set(jti, exp, ttl)
	return nil
}

func (c *InMemoryRevokedTokenCache) IsRevoked(jti string) bool {
	_, found := c.revoked.Get(jti)
	return found
}

func (c *InMemoryRevokedTokenCache) Cleanup() {
	c.revoked.DeleteExpired()
}
