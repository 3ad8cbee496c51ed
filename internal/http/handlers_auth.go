package httpx

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/observability/metrics"
	"github.com/target/powra-portal/internal/observability/statsd"
	"github.com/target/powra-portal/internal/ports"
	"github.com/target/powra-portal/internal/service"
)

// loginCookieTTL bounds the login round trip through the identity provider.
const loginCookieTTL = 10 * time.Minute

// AuthServiceInterface defines the interface for auth service operations.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, redirectURL string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput, cookies ports.Cookies) (domainauth.Session, error)
	Logout(ctx context.Context, cookies ports.Cookies) error
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc AuthServiceInterface
	// Sessions and Roles back the public status endpoint and skip the provider
	// round trip for users who are already signed in. Both are optional.
	Sessions SessionResolver
	Roles    RoleResolver
	Renderer *TemplateRenderer
	// CallbackURL is the provider redirect target registered for this portal.
	CallbackURL string
	Cookies     CookieConfig
	// IsDev shows error detail passed back from the access chain.
	IsDev   bool
	Metrics statsd.Sink
	Logger  *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) callbackURL() string {
	if h.CallbackURL != "" {
		return h.CallbackURL
	}
	return "/auth/callback"
}

// Login starts the provider flow, or renders the sign-in page when an error or
// sign-out notice must be shown first.
// GET /login?redirectedFrom=<path>&error=<code>.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dest := safeRedirectPath(q.Get("redirectedFrom"), DashboardPath)
	cookies := NewRequestCookies(w, r, h.Cookies)

	if code := q.Get("error"); code != "" || q.Has("signedOut") {
		h.renderLogin(w, r, code, dest)
		return
	}

	if h.Sessions != nil {
		if _, err := h.Sessions.Resolve(r.Context(), cookies); err == nil {
			http.Redirect(w, r, dest, http.StatusFound)
			return
		}
	}

	res, err := h.Svc.BeginLogin(r.Context(), h.callbackURL())
	if err != nil {
		h.logger().ErrorContext(r.Context(), "begin login failed", "error", err)
		metrics.EmitLogin(h.Metrics, metrics.LoginMetric{Step: "begin", Result: metrics.ResultError, Err: err})
		h.renderLogin(w, r, "auth_failed", dest)
		return
	}

	cookies.Set(OAuthStateCookie, res.State, loginCookieTTL)
	cookies.Set(OAuthNonceCookie, res.Nonce, loginCookieTTL)
	cookies.Set(PostLoginRedirectCookie, dest, loginCookieTTL)
	http.Redirect(w, r, res.AuthURL, http.StatusFound)
}

func (h *AuthHandlers) renderLogin(w http.ResponseWriter, r *http.Request, code, dest string) {
	signIn := LoginPath + "?" + url.Values{"redirectedFrom": {dest}}.Encode()
	flash := FlashMessage(code)
	if code == "" && r.URL.Query().Has("signedOut") {
		flash = "You have been signed out."
	}
	if h.Renderer == nil {
		WriteJSON(w, http.StatusOK, map[string]string{"error": code, "message": flash, "signIn": signIn})
		return
	}
	data := PageData{Title: "Sign in", Flash: flash, SignInURL: signIn}
	if h.IsDev {
		data.Detail = r.URL.Query().Get("message")
	}
	if err := h.Renderer.Render(w, PageLogin, data); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Callback completes the provider flow and issues the session.
// GET /auth/callback?code=<code>&state=<state>.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cookies := NewRequestCookies(w, r, h.Cookies)

	code := q.Get("code")
	if code == "" {
		h.failLogin(w, r, cookies, "no_code", errors.New(cmp.Or(q.Get("error_description"), q.Get("error"), "missing authorization code")))
		return
	}
	state := q.Get("state")
	stored, ok := cookies.Get(OAuthStateCookie)
	if !ok || state == "" || stored != state {
		h.failLogin(w, r, cookies, "auth_failed", errors.New("invalid or missing state parameter"))
		return
	}
	nonce, ok := cookies.Get(OAuthNonceCookie)
	if !ok || nonce == "" {
		h.failLogin(w, r, cookies, "auth_failed", errors.New("missing nonce"))
		return
	}

	sess, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:  code,
		State: state,
		Nonce: nonce,
	}, cookies)
	if err != nil {
		h.failLogin(w, r, cookies, "auth_failed", err)
		return
	}

	dest, _ := cookies.Get(PostLoginRedirectCookie)
	dest = safeRedirectPath(dest, DashboardPath)
	clearLoginCookies(cookies)

	metrics.EmitLogin(h.Metrics, metrics.LoginMetric{Step: "callback", Result: metrics.ResultSuccess})
	h.logger().InfoContext(r.Context(), "user signed in", "user_id", sess.UserID)
	http.Redirect(w, r, dest, http.StatusFound)
}

func (h *AuthHandlers) failLogin(w http.ResponseWriter, r *http.Request, cookies ports.Cookies, code string, err error) {
	clearLoginCookies(cookies)
	metrics.EmitLogin(h.Metrics, metrics.LoginMetric{Step: "callback", Result: metrics.ResultError, Err: err})
	h.logger().WarnContext(r.Context(), "login callback failed", "reason", code, "error", err)
	http.Redirect(w, r, LoginPath+"?"+url.Values{"error": {code}}.Encode(), http.StatusFound)
}

func clearLoginCookies(cookies ports.Cookies) {
	cookies.Remove(OAuthStateCookie)
	cookies.Remove(OAuthNonceCookie)
	cookies.Remove(PostLoginRedirectCookie)
}

// Logout revokes the session and clears its cookies.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	cookies := NewRequestCookies(w, r, h.Cookies)
	result := metrics.ResultSuccess
	if err := h.Svc.Logout(r.Context(), cookies); err != nil {
		// Cookies are cleared even when the store delete fails.
		h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		result = metrics.ResultError
	}
	metrics.EmitLogin(h.Metrics, metrics.LoginMetric{Step: "logout", Result: result})

	target := LoginPath + "?signedOut=1"
	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "redirect_to": target})
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// authStatus is the body of the status endpoint.
type authStatus struct {
	Authenticated bool        `json:"authenticated"`
	User          *statusUser `json:"user,omitempty"`
	Role          string      `json:"role,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
}

type statusUser struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Status returns the current authentication status without requiring a session.
// GET /api/auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	if h.Sessions == nil {
		WriteJSON(w, http.StatusOK, authStatus{})
		return
	}
	sess, err := h.Sessions.Resolve(r.Context(), NewRequestCookies(w, r, h.Cookies))
	if err != nil {
		if !errors.Is(err, ports.ErrUnauthenticated) {
			h.logger().WarnContext(r.Context(), "status check failed", "error", err)
		}
		WriteJSON(w, http.StatusOK, authStatus{})
		return
	}

	out := authStatus{Authenticated: true, User: newStatusUser(sess)}
	if !sess.ExpiresAt.IsZero() {
		out.ExpiresAt = &sess.ExpiresAt
	}
	if h.Roles != nil {
		if role, roleErr := h.Roles.Resolve(r.Context(), sess); roleErr == nil {
			out.Role = role.String()
		}
	}
	WriteJSON(w, http.StatusOK, out)
}

func newStatusUser(sess domainauth.Session) *statusUser {
	return &statusUser{
		ID:        sess.UserID,
		Email:     sess.Email,
		FirstName: sess.FirstName,
		LastName:  sess.LastName,
	}
}
