package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jrsteele09/go-authserver-security/authorization"
	"github.com/jrsteele09/go-authserver-security/token"
	"github.com/redis/go-redis/v9"
)

var _ authorization.Store = (*RedisStore)(nil)

const (
	keyTypeAuthorization = "authz"
	keyTypeToken         = "token"
	keyTypeConsumed      = "consumed"
	keyTypeRevoked       = "revoked"

	maxTxRetries = 10

	// DefaultRetention keeps documents around after their last token expires so that
	// reuse of an old code or refresh token is still detected.
	DefaultRetention = 24 * time.Hour
)

// RedisStore keeps each authorization as a JSON document plus one index key per token value.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
	retention time.Duration
	nowFunc   func() time.Time
}

type Option func(*RedisStore)

func WithRetention(d time.Duration) Option {
	return func(s *RedisStore) {
		s.retention = d
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *RedisStore) {
		s.nowFunc = now
	}
}

// New connects to addr and verifies the connection.
func New(ctx context.Context, addr, password string, db int, keyPrefix string, opts ...Option) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewWithClient(client, keyPrefix, opts...), nil
}

// NewWithClient creates a RedisStore around a pre-configured client.
func NewWithClient(client redis.UniversalClient, keyPrefix string, opts ...Option) *RedisStore {
	s := &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		retention: DefaultRetention,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) key(parts ...string) string {
	k := s.keyPrefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *RedisStore) tokenKey(kind token.Kind, value string) string {
	return s.key(keyTypeToken, string(kind), value)
}

func (s *RedisStore) ttl(a *authorization.Authorization) time.Duration {
	var latest time.Time
	for _, t := range a.Tokens() {
		if exp := t.Value().ExpiresAt(); exp.After(latest) {
			latest = exp
		}
	}
	if latest.IsZero() {
		return s.retention
	}
	ttl := latest.Sub(s.nowFunc()) + s.retention
	if ttl <= 0 {
		return s.retention
	}
	return ttl
}

func (s *RedisStore) Save(ctx context.Context, a *authorization.Authorization) error {
	return s.watch(ctx, a.ID(), func(tx *redis.Tx) error {
		if a.HasLiveTokens() {
			revoked, err := tx.Exists(ctx, s.key(keyTypeRevoked, a.ID())).Result()
			if err != nil {
				return fmt.Errorf("failed to check revocation: %w", err)
			}
			if revoked > 0 {
				return authorization.ErrAuthorizationRevoked
			}
		}
		return s.write(ctx, tx, a)
	})
}

// Revoke marks id as revoked before invalidating the stored document, so a concurrent
// Save that started earlier either lands first and is invalidated here, or fails its
// transaction and sees the marker on retry.
func (s *RedisStore) Revoke(ctx context.Context, id string) (*authorization.Authorization, error) {
	if err := s.client.Set(ctx, s.key(keyTypeRevoked, id), "1", s.retention).Err(); err != nil {
		return nil, fmt.Errorf("failed to mark authorization revoked: %w", err)
	}

	var revoked *authorization.Authorization
	err := s.watch(ctx, id, func(tx *redis.Tx) error {
		current, err := s.findByID(ctx, tx, id)
		if err != nil {
			return err
		}
		revoked = current.InvalidateAll()
		return s.write(ctx, tx, revoked)
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

// watch runs fn under WATCH on the authorization and its revocation marker, retrying
// when another client changed either key in between.
func (s *RedisStore) watch(ctx context.Context, id string, fn func(tx *redis.Tx) error) error {
	keys := []string{s.key(keyTypeAuthorization, id), s.key(keyTypeRevoked, id)}
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("failed to update authorization %s: %w", id, redis.TxFailedErr)
}

// write replaces the document and its token index inside tx.
func (s *RedisStore) write(ctx context.Context, tx *redis.Tx, a *authorization.Authorization) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization: %w", err)
	}

	previous, err := s.findByID(ctx, tx, a.ID())
	if err != nil && !errors.Is(err, authorization.ErrAuthorizationNotFound) {
		return err
	}

	ttl := s.ttl(a)
	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if previous != nil {
			for kind, t := range previous.Tokens() {
				pipe.Del(ctx, s.tokenKey(kind, t.Value().Value()))
			}
		}
		pipe.Set(ctx, s.key(keyTypeAuthorization, a.ID()), data, ttl)
		for kind, t := range a.Tokens() {
			pipe.Set(ctx, s.tokenKey(kind, t.Value().Value()), a.ID(), ttl)
		}
		return nil
	})
	if errors.Is(err, redis.TxFailedErr) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to save authorization: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, id string) error {
	existing, err := s.FindByID(ctx, id)
	if errors.Is(err, authorization.ErrAuthorizationNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	keys := []string{s.key(keyTypeAuthorization, id), s.key(keyTypeRevoked, id)}
	for kind, t := range existing.Tokens() {
		keys = append(keys, s.tokenKey(kind, t.Value().Value()))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to remove authorization: %w", err)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (*authorization.Authorization, error) {
	return s.findByID(ctx, s.client, id)
}

// getter is satisfied by both the client and a watched transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) findByID(ctx context.Context, c getter, id string) (*authorization.Authorization, error) {
	data, err := c.Get(ctx, s.key(keyTypeAuthorization, id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, authorization.ErrAuthorizationNotFound
		}
		return nil, fmt.Errorf("failed to get authorization: %w", err)
	}

	var a authorization.Authorization
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization: %w", err)
	}
	return &a, nil
}

func (s *RedisStore) FindByToken(ctx context.Context, value string, kind token.Kind) (*authorization.Authorization, error) {
	kinds := authorization.LookupKinds
	if kind != "" {
		kinds = []token.Kind{kind}
	}
	for _, k := range kinds {
		id, err := s.client.Get(ctx, s.tokenKey(k, value)).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up %s: %w", k, err)
		}
		return s.FindByID(ctx, id)
	}
	return nil, authorization.ErrAuthorizationNotFound
}

// ConsumeAuthorizationCode claims the code with SETNX so exactly one caller, across
// every process sharing the redis instance, wins the exchange.
func (s *RedisStore) ConsumeAuthorizationCode(ctx context.Context, code string, now time.Time) (*authorization.Authorization, error) {
	a, err := s.FindByToken(ctx, code, token.KindAuthorizationCode)
	if err != nil {
		return nil, err
	}

	consumed, err := authorization.ConsumeCode(a, now)
	if err != nil {
		return consumed, err
	}

	claimed, err := s.client.SetNX(ctx, s.key(keyTypeConsumed, code), a.ID(), s.ttl(a)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim authorization code: %w", err)
	}
	if !claimed {
		// the winner may not have saved yet; report what is stored
		return a, authorization.ErrCodeConsumed
	}

	if err := s.Save(ctx, consumed); err != nil {
		return nil, err
	}
	return consumed, nil
}
