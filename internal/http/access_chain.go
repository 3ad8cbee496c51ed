package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/target/powra-portal/internal/domain/access"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/observability/audit"
	"github.com/target/powra-portal/internal/observability/metrics"
	"github.com/target/powra-portal/internal/observability/statsd"
	"github.com/target/powra-portal/internal/ports"
	"github.com/target/powra-portal/internal/service"
)

// SessionResolver finds the session carried by request cookies.
type SessionResolver interface {
	Resolve(ctx context.Context, cookies ports.Cookies) (domainauth.Session, error)
}

// RoleResolver finds the effective role for a session.
type RoleResolver interface {
	Resolve(ctx context.Context, sess domainauth.Session) (domainauth.Role, error)
}

// Paths the chain redirects to.
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// DefaultPublicPrefixes are gated-tree prefixes that bypass the chain.
func DefaultPublicPrefixes() []string {
	return []string{"/api/auth"}
}

// AccessChainOptions groups dependencies for AccessChain.
type AccessChainOptions struct {
	Sessions SessionResolver // Required
	Roles    RoleResolver    // Required
	Policy   *access.Policy  // Required

	Cookies CookieConfig
	// IsDev exposes error messages and stacks in rejections.
	IsDev bool
	// PublicPrefixes are skipped even inside /api. Nil selects DefaultPublicPrefixes.
	PublicPrefixes []string

	Metrics statsd.Sink   // Optional
	Audit   *audit.Logger // Optional
	Logger  *slog.Logger  // Optional
}

// AccessChain gates /dashboard and /api requests: recover guard, then session check,
// then role check. The first non-pass result short-circuits.
type AccessChain struct {
	sessions SessionResolver
	roles    RoleResolver
	policy   *access.Policy
	cookies  CookieConfig
	isDev    bool
	public   []string
	metrics  statsd.Sink
	audit    *audit.Logger
	logger   *slog.Logger
}

// NewAccessChain constructs an AccessChain.
func NewAccessChain(opts AccessChainOptions) *AccessChain {
	if opts.Sessions == nil {
		panic("SessionResolver is required")
	}
	if opts.Roles == nil {
		panic("RoleResolver is required")
	}
	if opts.Policy == nil {
		panic("Policy is required")
	}
	public := opts.PublicPrefixes
	if public == nil {
		public = DefaultPublicPrefixes()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessChain{
		sessions: opts.Sessions,
		roles:    opts.Roles,
		policy:   opts.Policy,
		cookies:  opts.Cookies,
		isDev:    opts.IsDev,
		public:   append([]string(nil), public...),
		metrics:  opts.Metrics,
		audit:    opts.Audit,
		logger:   logger.With("component", "access_chain"),
	}
}

// Applies reports whether path is evaluated by the chain.
func (c *AccessChain) Applies(path string) bool {
	if !access.Gated(path) {
		return false
	}
	for _, p := range c.public {
		if path == p || strings.HasPrefix(path, p+"/") {
			return false
		}
	}
	return true
}

// evaluation is the result of running the chain stages for one request.
type evaluation struct {
	decision access.Decision
	session  domainauth.Session
	stage    string
	err      error
}

// Middleware wraps next with the chain. Paths outside the gated trees pass untouched.
func (c *AccessChain) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.Applies(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ev := c.evaluate(w, r)
		c.record(r.Context(), ev, time.Since(start))

		if !ev.decision.Passed() {
			c.reject(w, r, ev)
			return
		}
		ctx := SetSessionInContext(r.Context(), ev.session)
		ctx = SetRoleInContext(ctx, ev.decision.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// evaluate runs the session and role stages. It never panics.
func (c *AccessChain) evaluate(w http.ResponseWriter, r *http.Request) (ev evaluation) {
	path := r.URL.Path
	ev.stage = metrics.StageSession
	defer func() {
		if rec := recover(); rec != nil {
			ev = evaluation{
				decision: access.Failed(path),
				stage:    metrics.StageRecover,
				err:      &panicError{value: rec, stack: debug.Stack()},
			}
		}
	}()

	sess, err := c.sessions.Resolve(r.Context(), NewRequestCookies(w, r, c.cookies))
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrUnauthenticated):
		ev.decision = access.Unauthenticated(path, access.ReasonAuthRequired)
		return ev
	case errors.Is(err, service.ErrSession):
		ev.decision = access.Unauthenticated(path, access.ReasonAuthError)
		ev.err = err
		return ev
	default:
		ev.decision = access.Failed(path)
		ev.err = err
		return ev
	}
	ev.session = sess

	ev.stage = metrics.StageRole
	role, err := c.roles.Resolve(r.Context(), sess)
	if err != nil {
		ev.decision = access.Denied("", path, access.ReasonRBACError)
		ev.err = err
		return ev
	}
	ev.decision = c.policy.Decide(role, path)
	return ev
}

func (c *AccessChain) record(ctx context.Context, ev evaluation, took time.Duration) {
	d := ev.decision
	switch {
	case d.Reason == access.ReasonMiddlewareError:
		attrs := []any{"path", d.Path, "stage", ev.stage, "error", ev.err}
		var pe *panicError
		if errors.As(ev.err, &pe) {
			attrs = append(attrs, "stack", string(pe.stack))
		}
		c.logger.ErrorContext(ctx, "access chain failed", attrs...)
	case d.Reason == access.ReasonAuthError:
		c.logger.WarnContext(ctx, "session provider error", "path", d.Path, "error", ev.err)
	case d.Reason == access.ReasonRBACError:
		c.logger.WarnContext(ctx, "role resolution failed", "path", d.Path, "user_id", ev.session.UserID, "error", ev.err)
	}

	c.audit.Decision(ctx, ev.session.UserID, d)
	metrics.EmitAccessDecision(c.metrics, metrics.AccessMetric{
		Decision: d,
		Stage:    ev.stage,
		Duration: took,
		Err:      ev.err,
	})
}

// accessErrorBody is the JSON shape of API rejections.
type accessErrorBody struct {
	Error        string `json:"error"`
	Message      string `json:"message"`
	RequiredRole string `json:"requiredRole,omitempty"`
	CurrentRole  string `json:"currentRole,omitempty"`
	Stack        string `json:"stack,omitempty"`
}

func (c *AccessChain) reject(w http.ResponseWriter, r *http.Request, ev evaluation) {
	d := ev.decision
	switch d.Outcome {
	case access.OutcomeUnauthorized:
		if d.Reason == access.ReasonAuthError {
			WriteJSON(w, http.StatusUnauthorized, c.errorBody("Authentication error", "Session validation failed", ev.err))
			return
		}
		WriteJSON(w, http.StatusUnauthorized, accessErrorBody{
			Error:   "Authentication required",
			Message: "No valid session found",
		})
	case access.OutcomeForbidden:
		if d.Reason == access.ReasonRBACError {
			WriteJSON(w, http.StatusForbidden, c.errorBody("Authorization error", "Unable to verify permissions", ev.err))
			return
		}
		WriteJSON(w, http.StatusForbidden, accessErrorBody{
			Error:        "Unauthorized",
			Message:      "Insufficient permissions for this operation",
			RequiredRole: "appropriate role",
			CurrentRole:  d.Role.String(),
		})
	case access.OutcomeError:
		WriteJSON(w, http.StatusInternalServerError, c.errorBody("Middleware error", "An unexpected error occurred", ev.err))
	case access.OutcomeRedirectLogin:
		q := url.Values{}
		if d.Reason == access.ReasonMiddlewareError {
			q.Set("error", d.Reason)
			c.addDetail(q, ev.err)
		} else {
			q.Set("redirectedFrom", d.Path)
			if d.Reason == access.ReasonAuthError {
				q.Set("error", d.Reason)
			}
		}
		http.Redirect(w, r, LoginPath+"?"+q.Encode(), http.StatusFound)
	case access.OutcomeRedirectDashboard:
		q := url.Values{"error": {d.Reason}}
		if d.Reason == access.ReasonRBACError {
			c.addDetail(q, ev.err)
		}
		target := DashboardPath
		if d.Path == DashboardPath {
			// The landing page itself was denied; sending the user back there would loop.
			target = LoginPath
		}
		http.Redirect(w, r, target+"?"+q.Encode(), http.StatusFound)
	default:
		// Unreachable for non-pass decisions; fail closed.
		WriteJSON(w, http.StatusInternalServerError, c.errorBody("Middleware error", "An unexpected error occurred", ev.err))
	}
}

// errorBody hides err behind generic unless running in dev mode.
func (c *AccessChain) errorBody(title, generic string, err error) accessErrorBody {
	body := accessErrorBody{Error: title, Message: generic}
	if !c.isDev || err == nil {
		return body
	}
	body.Message = err.Error()
	var pe *panicError
	if errors.As(err, &pe) {
		body.Stack = string(pe.stack)
	}
	return body
}

func (c *AccessChain) addDetail(q url.Values, err error) {
	if c.isDev && err != nil {
		q.Set("message", err.Error())
	}
}

// panicError carries a value recovered inside the chain.
type panicError struct {
	value any
	stack []byte
}

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.value) }

func (e *panicError) Unwrap() error {
	if err, ok := e.value.(error); ok {
		return err
	}
	return nil
}
