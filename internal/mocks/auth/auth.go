package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider        = (*MockAuthProvider)(nil)
	_ ports.SessionStore        = (*MemorySessionStore)(nil)
	_ ports.Cookies             = (*MemoryCookies)(nil)
	_ ports.SessionIntrospector = IntrospectorFunc(nil)
	_ ports.RoleSource          = RoleSourceFunc(nil)
	_ ports.UserRoleLookup      = StaticUserRoles(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (ports.ExchangeResult, error)

	// Deterministic values for predictable testing
	AuthURL     string
	DefaultUser domainauth.Identity

	mu        sync.Mutex
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL: "https://mock-idp/auth",
		DefaultUser: domainauth.Identity{
			UserID:    "mock-user-1",
			FirstName: "Mock",
			LastName:  "User",
			Email:     "mock.user@example.com",
			Metadata:  map[string]any{"role": "user"},
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}
	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	return authURL, fmt.Sprintf("state-%d", n), fmt.Sprintf("nonce-%d", n), nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.ExchangeResult, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	user := m.DefaultUser
	user.ExpiresAt = time.Now().Add(time.Hour)
	return ports.ExchangeResult{
		Identity: user,
		Tokens:   ports.Tokens{AccessToken: "mock-access", Expiry: user.ExpiresAt},
	}, nil
}

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
	// Err, when set, is returned from every call.
	Err error
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.Session)}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	if m.Err != nil {
		return m.Err
	}
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	if m.Err != nil {
		return domainauth.Session{}, m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ErrNotFound is returned by mocks when an entity is not present.
var ErrNotFound = errors.New("not found")

// MemoryCookies is a map-backed ports.Cookies recording writes.
type MemoryCookies struct {
	Values  map[string]string
	MaxAges map[string]time.Duration
	Removed map[string]bool
}

// NewMemoryCookies creates a cookie jar seeded with kv pairs.
func NewMemoryCookies(kv ...string) *MemoryCookies {
	c := &MemoryCookies{
		Values:  make(map[string]string),
		MaxAges: make(map[string]time.Duration),
		Removed: make(map[string]bool),
	}
	for i := 0; i+1 < len(kv); i += 2 {
		c.Values[kv[i]] = kv[i+1]
	}
	return c
}

func (c *MemoryCookies) Get(name string) (string, bool) {
	v, ok := c.Values[name]
	return v, ok
}

func (c *MemoryCookies) Set(name, value string, maxAge time.Duration) {
	c.Values[name] = value
	c.MaxAges[name] = maxAge
	delete(c.Removed, name)
}

func (c *MemoryCookies) Remove(name string) {
	delete(c.Values, name)
	c.Removed[name] = true
}

// IntrospectorFunc adapts a function to ports.SessionIntrospector.
type IntrospectorFunc func(ctx context.Context, cookies ports.Cookies) (domainauth.Session, error)

func (f IntrospectorFunc) Introspect(ctx context.Context, cookies ports.Cookies) (domainauth.Session, error) {
	return f(ctx, cookies)
}

// RoleSourceFunc adapts a function to ports.RoleSource.
type RoleSourceFunc func(ctx context.Context, id domainauth.Identity) (domainauth.Role, error)

func (f RoleSourceFunc) ResolveRole(ctx context.Context, id domainauth.Identity) (domainauth.Role, error) {
	return f(ctx, id)
}

// StaticRole returns a RoleSource that always resolves to role.
func StaticRole(role domainauth.Role) RoleSourceFunc {
	return func(context.Context, domainauth.Identity) (domainauth.Role, error) { return role, nil }
}

// StaticUserRoles is a map-backed ports.UserRoleLookup.
type StaticUserRoles map[string]string

func (s StaticUserRoles) GetRole(_ context.Context, userID string) (string, error) {
	role, ok := s[userID]
	if !ok {
		return "", ports.ErrUserNotFound
	}
	return role, nil
}
