package authn

import (
	"context"
	"errors"

	"github.com/jrsteele09/go-authserver-security/clients"
	apperrors "github.com/jrsteele09/go-authserver-security/internal/errors"
	"github.com/jrsteele09/go-authserver-security/users"
)

var ErrUsernameNotFound = errors.New("username not found")

// UserDetails is the username/credential shape a DaoProvider checks against.
type UserDetails struct {
	Username    string
	Password    string
	Authorities []string
	Enabled     bool
}

// UserDetailsService loads UserDetails by username. Unknown names return ErrUsernameNotFound.
type UserDetailsService interface {
	LoadUserByUsername(ctx context.Context, username string) (*UserDetails, error)
}

// DaoProvider authenticates username/password attempts against a UserDetailsService.
type DaoProvider struct {
	details  UserDetailsService
	verifier PasswordVerifier
}

func NewDaoProvider(details UserDetailsService, verifier PasswordVerifier) *DaoProvider {
	if verifier == nil {
		verifier = PlainVerifier{}
	}
	return &DaoProvider{details: details, verifier: verifier}
}

func (p *DaoProvider) Supports(a *Authentication) bool {
	return a.Kind == KindUsernamePassword
}

func (p *DaoProvider) Authenticate(ctx context.Context, a *Authentication) (*Authentication, error) {
	if a.Principal == "" {
		return nil, apperrors.AuthenticationFailed("missing principal", apperrors.ErrBadCredentials)
	}
	ud, err := p.details.LoadUserByUsername(ctx, a.Principal)
	if errors.Is(err, ErrUsernameNotFound) {
		// indistinguishable from a wrong secret
		return nil, apperrors.AuthenticationFailed("bad credentials", apperrors.ErrBadCredentials)
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, "DaoProvider.Authenticate LoadUserByUsername")
	}
	if !ud.Enabled {
		return nil, apperrors.AuthenticationFailed("account disabled", apperrors.ErrAccountDisabled)
	}
	if !p.verifier.Matches(a.Credentials, ud.Password) {
		return nil, apperrors.AuthenticationFailed("bad credentials", apperrors.ErrBadCredentials)
	}
	return a.authenticated(ud.Authorities), nil
}

// ClientDetailsService presents registered clients as users: the client id is the
// username and the client secret the password.
type ClientDetailsService struct {
	repo clients.Repo
}

func NewClientDetailsService(repo clients.Repo) *ClientDetailsService {
	return &ClientDetailsService{repo: repo}
}

func (s *ClientDetailsService) LoadUserByUsername(ctx context.Context, clientID string) (*UserDetails, error) {
	client, err := s.repo.Get(ctx, clientID)
	if errors.Is(err, clients.ErrClientNotFound) {
		return nil, ErrUsernameNotFound
	}
	if err != nil {
		return nil, err
	}
	authorities := client.Authorities
	if len(authorities) == 0 {
		authorities = []string{"ROLE_CLIENT"}
	}
	return &UserDetails{
		Username:    client.ID,
		Password:    client.Secret,
		Authorities: authorities,
		Enabled:     true,
	}, nil
}

// ResourceOwnerDetailsService presents resource owners for the password grant.
type ResourceOwnerDetailsService struct {
	repo users.Repo
}

func NewResourceOwnerDetailsService(repo users.Repo) *ResourceOwnerDetailsService {
	return &ResourceOwnerDetailsService{repo: repo}
}

func (s *ResourceOwnerDetailsService) LoadUserByUsername(ctx context.Context, username string) (*UserDetails, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, ErrUsernameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &UserDetails{
		Username:    u.Username,
		Password:    u.PasswordHash,
		Authorities: u.Authorities,
		Enabled:     u.Enabled(),
	}, nil
}
