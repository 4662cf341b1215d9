package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-authserver-security/authorization"
	"github.com/jrsteele09/go-authserver-security/token"
)

var _ authorization.Store = (*MemStore)(nil)

type MemStore struct {
	authorizations map[string]*authorization.Authorization
	index          map[token.Kind]map[string]string
	revoked        map[string]struct{}
	lock           sync.RWMutex
}

func New() *MemStore {
	s := &MemStore{
		authorizations: make(map[string]*authorization.Authorization),
		index:          make(map[token.Kind]map[string]string),
		revoked:        make(map[string]struct{}),
	}
	for _, kind := range authorization.LookupKinds {
		s.index[kind] = make(map[string]string)
	}
	return s
}

func (s *MemStore) Save(_ context.Context, a *authorization.Authorization) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, revoked := s.revoked[a.ID()]; revoked && a.HasLiveTokens() {
		return authorization.ErrAuthorizationRevoked
	}
	s.save(a)
	return nil
}

func (s *MemStore) save(a *authorization.Authorization) {
	s.unindex(a.ID())
	s.authorizations[a.ID()] = a
	for kind, t := range a.Tokens() {
		if idx, ok := s.index[kind]; ok {
			idx[t.Value().Value()] = a.ID()
		}
	}
}

func (s *MemStore) unindex(id string) {
	existing, ok := s.authorizations[id]
	if !ok {
		return
	}
	for kind, t := range existing.Tokens() {
		if idx, ok := s.index[kind]; ok {
			delete(idx, t.Value().Value())
		}
	}
}

func (s *MemStore) Remove(_ context.Context, id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.unindex(id)
	delete(s.authorizations, id)
	delete(s.revoked, id)
	return nil
}

func (s *MemStore) Revoke(_ context.Context, id string) (*authorization.Authorization, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.revoked[id] = struct{}{}
	a, ok := s.authorizations[id]
	if !ok {
		return nil, authorization.ErrAuthorizationNotFound
	}
	revoked := a.InvalidateAll()
	s.save(revoked)
	return revoked, nil
}

func (s *MemStore) FindByID(_ context.Context, id string) (*authorization.Authorization, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	a, ok := s.authorizations[id]
	if !ok {
		return nil, authorization.ErrAuthorizationNotFound
	}
	return a, nil
}

func (s *MemStore) FindByToken(_ context.Context, value string, kind token.Kind) (*authorization.Authorization, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.findByToken(value, kind)
}

func (s *MemStore) findByToken(value string, kind token.Kind) (*authorization.Authorization, error) {
	kinds := authorization.LookupKinds
	if kind != "" {
		kinds = []token.Kind{kind}
	}
	for _, k := range kinds {
		if id, ok := s.index[k][value]; ok {
			return s.authorizations[id], nil
		}
	}
	return nil, authorization.ErrAuthorizationNotFound
}

func (s *MemStore) ConsumeAuthorizationCode(_ context.Context, code string, now time.Time) (*authorization.Authorization, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	a, err := s.findByToken(code, token.KindAuthorizationCode)
	if err != nil {
		return nil, err
	}
	consumed, err := authorization.ConsumeCode(a, now)
	if err != nil {
		return consumed, err
	}
	s.save(consumed)
	return consumed, nil
}
