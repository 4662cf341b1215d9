package clients

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachingRepo keeps recently loaded clients in memory so that the client-secret
// provider does not hit the backing store on every token request.
type CachingRepo struct {
	repo  Repo
	cache *gocache.Cache
}

var _ Repo = (*CachingRepo)(nil)

func NewCachingRepo(repo Repo, ttl time.Duration) *CachingRepo {
	return &CachingRepo{
		repo:  repo,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (r *CachingRepo) Upsert(ctx context.Context, client *Client) error {
	if err := r.repo.Upsert(ctx, client); err != nil {
		return err
	}
	r.cache.Delete(client.ID)
	return nil
}

func (r *CachingRepo) Delete(ctx context.Context, clientID string) error {
	r.cache.Delete(clientID)
	return r.repo.Delete(ctx, clientID)
}

func (r *CachingRepo) Get(ctx context.Context, clientID string) (*Client, error) {
	if v, ok := r.cache.Get(clientID); ok {
		if c, ok := v.(*Client); ok {
			return c, nil
		}
	}
	c, err := r.repo.Get(ctx, clientID)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(clientID, c)
	return c, nil
}

func (r *CachingRepo) List(ctx context.Context, offset, limit int) ([]*Client, error) {
	return r.repo.List(ctx, offset, limit)
}
