package authn

import (
	"context"
	"slices"

	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/pkg/errors"
)

// Provider authenticates the attempts it supports. Returning (nil, nil) abstains.
type Provider interface {
	Supports(a *Authentication) bool
	Authenticate(ctx context.Context, a *Authentication) (*Authentication, error)
}

// EventPublisher is told about every authentication outcome the Manager produces.
type EventPublisher interface {
	PublishSuccess(ctx context.Context, result *Authentication)
	PublishFailure(ctx context.Context, attempt *Authentication, err error)
}

// Manager consults its providers in order. The first success wins.
type Manager struct {
	providers []Provider
	publisher EventPublisher
}

type ManagerOption func(*Manager)

func WithEventPublisher(p EventPublisher) ManagerOption {
	return func(m *Manager) {
		m.publisher = p
	}
}

// NewManager fails when providers is empty or holds a nil provider.
func NewManager(providers []Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, apperrors.Configuration("authentication manager", "at least one provider is required")
	}
	for i, p := range providers {
		if p == nil {
			return nil, apperrors.Configuration("authentication manager", "provider %d is nil", i)
		}
	}
	m := &Manager{providers: slices.Clone(providers)}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Providers returns the providers in consultation order.
func (m *Manager) Providers() []Provider {
	return slices.Clone(m.providers)
}

// Authenticate returns an authenticated copy of a or an error. Bad credentials from one
// provider let the next provider try; a disabled account or an internal error stops the search.
func (m *Manager) Authenticate(ctx context.Context, a *Authentication) (*Authentication, error) {
	if a == nil {
		return nil, apperrors.AuthenticationFailed("no credentials presented", apperrors.ErrBadCredentials)
	}

	var lastErr error
	for _, p := range m.providers {
		if !p.Supports(a) {
			continue
		}
		result, err := p.Authenticate(ctx, a)
		if err != nil {
			if apperrors.IsAuthenticationFailure(err) && !errors.Is(err, apperrors.ErrAccountDisabled) {
				lastErr = err
				continue
			}
			m.publishFailure(ctx, a, err)
			return nil, err
		}
		if result != nil {
			if m.publisher != nil {
				m.publisher.PublishSuccess(ctx, result)
			}
			return result, nil
		}
	}

	if lastErr == nil {
		lastErr = apperrors.AuthenticationFailed("no provider for "+string(a.Kind), apperrors.ErrProviderNotFound)
	}
	m.publishFailure(ctx, a, lastErr)
	return nil, lastErr
}

func (m *Manager) publishFailure(ctx context.Context, a *Authentication, err error) {
	if m.publisher != nil {
		m.publisher.PublishFailure(ctx, a, err)
	}
}
