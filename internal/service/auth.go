package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
)

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.AuthProvider  // Required
	Sessions ports.SessionIssuer // Required
	Logger   *slog.Logger        // Optional
}

// AuthService orchestrates login and logout by coordinating the identity provider
// and the session issuer.
type AuthService struct {
	provider ports.AuthProvider
	sessions ports.SessionIssuer
	logger   *slog.Logger
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	if opts.Provider == nil {
		panic("AuthProvider is required")
	}
	if opts.Sessions == nil {
		panic("SessionIssuer is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		provider: opts.Provider,
		sessions: opts.Sessions,
		logger:   logger.With("component", "auth_service"),
	}
}

// BeginLoginResult contains the result of beginning a login flow.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin initiates an authentication flow and returns the provider auth URL with state and nonce.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURL string) (*BeginLoginResult, error) {
	if redirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}

	authURL, state, nonce, err := s.provider.Begin(ctx, ports.BeginInput{RedirectURL: redirectURL})
	if err != nil {
		return nil, fmt.Errorf("begin auth flow: %w", err)
	}
	return &BeginLoginResult{AuthURL: authURL, State: state, Nonce: nonce}, nil
}

// CompleteLoginInput groups parameters for completing a login flow.
type CompleteLoginInput struct {
	Code  string
	State string
	Nonce string
}

// CompleteLogin exchanges the authorization code and issues a session, writing its cookies.
func (s *AuthService) CompleteLogin(
	ctx context.Context,
	input CompleteLoginInput,
	cookies ports.Cookies,
) (domainauth.Session, error) {
	if input.Code == "" {
		return domainauth.Session{}, errors.New("authorization code is required")
	}
	if input.State == "" {
		return domainauth.Session{}, errors.New("state parameter is required")
	}
	if input.Nonce == "" {
		return domainauth.Session{}, errors.New("nonce parameter is required")
	}

	res, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:  input.Code,
		State: input.State,
		Nonce: input.Nonce,
	})
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	sess, err := s.sessions.Issue(ctx, res, cookies)
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("issue session: %w", err)
	}
	s.logger.InfoContext(ctx, "login completed", "user_id", sess.UserID)
	return sess, nil
}

// Logout revokes the session carried by cookies. It is a no-op without one.
func (s *AuthService) Logout(ctx context.Context, cookies ports.Cookies) error {
	if err := s.sessions.Revoke(ctx, cookies); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
