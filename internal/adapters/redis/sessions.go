package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
)

// SessionCookieName is the cookie carrying the opaque server-side session id.
const SessionCookieName = "session_id"

// Store is the persistence surface used by SessionManager.
type Store interface {
	Save(ctx context.Context, sess domainauth.Session) error
	Get(ctx context.Context, id string) (domainauth.Session, error)
	Delete(ctx context.Context, id string) error
}

// SessionManagerOptions configures SessionManager.
type SessionManagerOptions struct {
	Store Store
	// TTL is the lifetime granted on login and on each refresh. Defaults to 8h.
	TTL time.Duration
	// RefreshWindow triggers a sliding refresh when less than this remains. Zero disables refresh.
	RefreshWindow time.Duration
	// MaxAge caps the total lifetime from IssuedAt. Zero means no cap.
	MaxAge time.Duration
	// Now overrides the clock (tests).
	Now func() time.Time
}

// SessionManager issues and introspects server-side sessions keyed by an opaque cookie.
type SessionManager struct {
	store         Store
	ttl           time.Duration
	refreshWindow time.Duration
	maxAge        time.Duration
	now           func() time.Time
}

var (
	_ ports.SessionIntrospector = (*SessionManager)(nil)
	_ ports.SessionIssuer       = (*SessionManager)(nil)
)

// NewSessionManager constructs a SessionManager.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Store == nil {
		return nil, errors.New("session store is required")
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SessionManager{
		store:         opts.Store,
		ttl:           ttl,
		refreshWindow: opts.RefreshWindow,
		maxAge:        opts.MaxAge,
		now:           now,
	}, nil
}

// Issue persists a session for the exchanged identity and sets the session cookie.
func (m *SessionManager) Issue(ctx context.Context, res ports.ExchangeResult, cookies ports.Cookies) (domainauth.Session, error) {
	id := res.Identity
	if id.UserID == "" {
		return domainauth.Session{}, errors.New("identity has no user id")
	}
	now := m.now()
	expires := now.Add(m.ttl)
	if m.maxAge > 0 && expires.After(now.Add(m.maxAge)) {
		expires = now.Add(m.maxAge)
	}

	sess := domainauth.Session{
		ID:             uuid.NewString(),
		UserID:         id.UserID,
		FirstName:      id.FirstName,
		LastName:       id.LastName,
		Email:          id.Email,
		Groups:         id.Groups,
		Metadata:       id.Metadata,
		HasAccessToken: res.Tokens.AccessToken != "",
		IssuedAt:       now,
		ExpiresAt:      expires,
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("save session: %w", err)
	}
	cookies.Set(SessionCookieName, sess.ID, expires.Sub(now))
	return sess, nil
}

// Introspect loads the session named by the session cookie and applies sliding refresh.
func (m *SessionManager) Introspect(ctx context.Context, cookies ports.Cookies) (domainauth.Session, error) {
	id, ok := cookies.Get(SessionCookieName)
	if !ok || id == "" {
		return domainauth.Session{}, ports.ErrUnauthenticated
	}

	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			cookies.Remove(SessionCookieName)
			return domainauth.Session{}, ports.ErrUnauthenticated
		}
		return domainauth.Session{}, fmt.Errorf("load session: %w", err)
	}

	now := m.now()
	if sess.Expired(now) {
		cookies.Remove(SessionCookieName)
		return domainauth.Session{}, ports.ErrUnauthenticated
	}

	if refreshed, ok := m.refreshed(sess, now); ok {
		if saveErr := m.store.Save(ctx, refreshed); saveErr != nil {
			return domainauth.Session{}, fmt.Errorf("refresh session: %w", saveErr)
		}
		cookies.Set(SessionCookieName, refreshed.ID, refreshed.ExpiresAt.Sub(now))
		sess = refreshed
	}
	return sess, nil
}

// refreshed returns sess with an extended expiry when it is inside the refresh window.
func (m *SessionManager) refreshed(sess domainauth.Session, now time.Time) (domainauth.Session, bool) {
	if m.refreshWindow <= 0 || sess.ExpiresAt.Sub(now) >= m.refreshWindow {
		return sess, false
	}
	next := now.Add(m.ttl)
	if m.maxAge > 0 && !sess.IssuedAt.IsZero() {
		if limit := sess.IssuedAt.Add(m.maxAge); next.After(limit) {
			next = limit
		}
	}
	if !next.After(sess.ExpiresAt) {
		return sess, false
	}
	sess.ExpiresAt = next
	return sess, true
}

// Revoke deletes the server-side session and clears its cookie.
func (m *SessionManager) Revoke(ctx context.Context, cookies ports.Cookies) error {
	id, ok := cookies.Get(SessionCookieName)
	cookies.Remove(SessionCookieName)
	if !ok || id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
