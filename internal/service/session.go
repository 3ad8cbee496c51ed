package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
)

// DefaultProviderTimeout bounds a single session or role provider call.
const DefaultProviderTimeout = 5 * time.Second

// ErrSession marks a failure of the session provider itself, as opposed to a
// request that simply has no valid session.
var ErrSession = errors.New("session provider error")

// SessionError wraps a provider failure. errors.Is(err, ErrSession) holds.
type SessionError struct {
	Err error
}

func (e *SessionError) Error() string { return fmt.Sprintf("session provider error: %v", e.Err) }

func (e *SessionError) Unwrap() []error { return []error{ErrSession, e.Err} }

// SessionResolverOptions groups dependencies for SessionResolver.
type SessionResolverOptions struct {
	Introspector ports.SessionIntrospector // Required
	Timeout      time.Duration             // Optional: defaults to DefaultProviderTimeout
	Logger       *slog.Logger              // Optional
}

// SessionResolver determines whether a request carries a valid session.
type SessionResolver struct {
	introspector ports.SessionIntrospector
	timeout      time.Duration
	logger       *slog.Logger
}

// NewSessionResolver constructs a SessionResolver.
func NewSessionResolver(opts SessionResolverOptions) *SessionResolver {
	if opts.Introspector == nil {
		panic("SessionIntrospector is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionResolver{
		introspector: opts.Introspector,
		timeout:      timeout,
		logger:       logger.With("component", "session_resolver"),
	}
}

// Resolve returns the session carried by cookies. It returns ports.ErrUnauthenticated
// when there is none, or a *SessionError when the provider failed or timed out.
// Refresh side effects are written through cookies.
func (r *SessionResolver) Resolve(ctx context.Context, cookies ports.Cookies) (domainauth.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err := r.introspector.Introspect(ctx, cookies)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrUnauthenticated):
		return domainauth.Session{}, ports.ErrUnauthenticated
	default:
		return domainauth.Session{}, &SessionError{Err: err}
	}

	if sess.UserID == "" {
		r.logger.WarnContext(ctx, "provider returned a session without a user id")
		return domainauth.Session{}, ports.ErrUnauthenticated
	}
	if sess.Expired(time.Now()) {
		return domainauth.Session{}, ports.ErrUnauthenticated
	}
	return sess, nil
}
