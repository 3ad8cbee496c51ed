package oidc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
	"golang.org/x/oauth2"
)

// Token cookie names used in token session mode.
const (
	AccessTokenCookie  = "access_token"
	IDTokenCookie      = "id_token"
	RefreshTokenCookie = "refresh_token"
)

// TokenSessionOptions configures TokenSessions.
type TokenSessionOptions struct {
	Verifier   *gooidc.IDTokenVerifier
	OAuth2     *oauth2.Config
	HTTPClient *http.Client
	// RefreshTTL is the cookie lifetime of the refresh token. Defaults to 7 days.
	RefreshTTL time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

// TokenSessions keeps the session in provider token cookies. The ID token is the
// session; an expired one is replaced through the refresh token when present.
type TokenSessions struct {
	verifier   *gooidc.IDTokenVerifier
	oauth      *oauth2.Config
	httpClient *http.Client
	refreshTTL time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

var (
	_ ports.SessionIntrospector = (*TokenSessions)(nil)
	_ ports.SessionIssuer       = (*TokenSessions)(nil)
)

// NewTokenSessions constructs TokenSessions.
func NewTokenSessions(opts TokenSessionOptions) *TokenSessions {
	ttl := opts.RefreshTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TokenSessions{
		verifier:   opts.Verifier,
		oauth:      opts.OAuth2,
		httpClient: opts.HTTPClient,
		refreshTTL: ttl,
		logger:     logger.With("component", "oidc_token_sessions"),
		now:        now,
	}
}

// Issue writes the token cookies for a completed login.
func (t *TokenSessions) Issue(_ context.Context, res ports.ExchangeResult, cookies ports.Cookies) (domainauth.Session, error) {
	if res.Tokens.IDToken == "" {
		return domainauth.Session{}, errors.New("token session requires an id_token")
	}
	sess := sessionFromIdentity(res.Identity, res.Tokens, t.now())
	t.writeCookies(cookies, res.Tokens, sess.ExpiresAt)
	return sess, nil
}

// Introspect verifies the ID token cookie, refreshing it when expired.
func (t *TokenSessions) Introspect(ctx context.Context, cookies ports.Cookies) (domainauth.Session, error) {
	rawID, ok := cookies.Get(IDTokenCookie)
	if !ok || rawID == "" {
		return domainauth.Session{}, ports.ErrUnauthenticated
	}
	if t.httpClient != nil {
		ctx = gooidc.ClientContext(ctx, t.httpClient)
	}

	id, err := verifyIdentity(ctx, t.verifier, rawID, "")
	if err == nil {
		access, _ := cookies.Get(AccessTokenCookie)
		return sessionFromIdentity(id, ports.Tokens{AccessToken: access, IDToken: rawID}, t.now()), nil
	}

	var expired *gooidc.TokenExpiredError
	if !errors.As(err, &expired) {
		t.logger.DebugContext(ctx, "id token rejected", "error", err)
		t.clear(cookies)
		return domainauth.Session{}, ports.ErrUnauthenticated
	}

	refresh, ok := cookies.Get(RefreshTokenCookie)
	if !ok || refresh == "" {
		t.clear(cookies)
		return domainauth.Session{}, ports.ErrUnauthenticated
	}
	return t.refresh(ctx, refresh, cookies)
}

func (t *TokenSessions) refresh(ctx context.Context, refreshToken string, cookies ports.Cookies) (domainauth.Session, error) {
	src := t.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken, Expiry: t.now().Add(-time.Second)})
	tok, err := src.Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil && rerr.Response.StatusCode < http.StatusInternalServerError {
			// The provider rejected the grant: the session is over.
			t.clear(cookies)
			return domainauth.Session{}, ports.ErrUnauthenticated
		}
		return domainauth.Session{}, fmt.Errorf("refresh token: %w", err)
	}

	rawID, err := getIDTokenFromToken(tok)
	if err != nil {
		t.clear(cookies)
		return domainauth.Session{}, ports.ErrUnauthenticated
	}
	id, err := verifyIdentity(ctx, t.verifier, rawID, "")
	if err != nil {
		t.logger.WarnContext(ctx, "refreshed id token rejected", "error", err)
		t.clear(cookies)
		return domainauth.Session{}, ports.ErrUnauthenticated
	}

	tokens := ports.Tokens{
		AccessToken:  tok.AccessToken,
		IDToken:      rawID,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	sess := sessionFromIdentity(id, tokens, t.now())
	t.writeCookies(cookies, tokens, sess.ExpiresAt)
	return sess, nil
}

// Revoke clears the token cookies. Provider-side revocation is not attempted.
func (t *TokenSessions) Revoke(_ context.Context, cookies ports.Cookies) error {
	t.clear(cookies)
	return nil
}

func (t *TokenSessions) writeCookies(cookies ports.Cookies, tokens ports.Tokens, expires time.Time) {
	ttl := expires.Sub(t.now())
	if tokens.AccessToken != "" {
		cookies.Set(AccessTokenCookie, tokens.AccessToken, ttl)
	}
	// The ID token cookie outlives the token itself so an expired token can still be refreshed.
	cookies.Set(IDTokenCookie, tokens.IDToken, t.refreshTTL)
	if tokens.RefreshToken != "" {
		cookies.Set(RefreshTokenCookie, tokens.RefreshToken, t.refreshTTL)
	}
}

func (t *TokenSessions) clear(cookies ports.Cookies) {
	cookies.Remove(AccessTokenCookie)
	cookies.Remove(IDTokenCookie)
	cookies.Remove(RefreshTokenCookie)
}

func sessionFromIdentity(id domainauth.Identity, tokens ports.Tokens, now time.Time) domainauth.Session {
	sid, _ := id.Metadata["sid"].(string)
	return domainauth.Session{
		ID:             sid,
		UserID:         id.UserID,
		FirstName:      id.FirstName,
		LastName:       id.LastName,
		Email:          id.Email,
		Groups:         id.Groups,
		Metadata:       id.Metadata,
		HasAccessToken: tokens.AccessToken != "",
		IssuedAt:       now,
		ExpiresAt:      id.ExpiresAt,
	}
}
