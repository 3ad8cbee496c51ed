package access

import (
	"strings"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
)

// RouteClass distinguishes browser-navigable pages from JSON API endpoints.
type RouteClass int

const (
	ClassPage RouteClass = iota
	ClassAPI
)

func (c RouteClass) String() string {
	if c == ClassAPI {
		return "api"
	}
	return "page"
}

// Classify returns ClassAPI for /api and /api/..., ClassPage otherwise.
func Classify(path string) RouteClass {
	if path == APIPrefix || strings.HasPrefix(path, APIPrefix+"/") {
		return ClassAPI
	}
	return ClassPage
}

// Gated reports whether path falls under the gated /dashboard or /api trees.
func Gated(path string) bool {
	if Classify(path) == ClassAPI {
		return true
	}
	return path == DashboardPrefix || strings.HasPrefix(path, DashboardPrefix+"/")
}

// Outcome is the result of evaluating a request against the chain.
type Outcome int

const (
	// OutcomePass forwards the request unchanged.
	OutcomePass Outcome = iota
	// OutcomeUnauthorized rejects an API request with 401.
	OutcomeUnauthorized
	// OutcomeForbidden rejects an API request with 403.
	OutcomeForbidden
	// OutcomeRedirectLogin sends a page request to the login screen.
	OutcomeRedirectLogin
	// OutcomeRedirectDashboard sends a page request to the dashboard landing page with an error.
	OutcomeRedirectDashboard
	// OutcomeError rejects an API request with 500 after an unexpected chain failure.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeForbidden:
		return "forbidden"
	case OutcomeRedirectLogin:
		return "redirect_login"
	case OutcomeRedirectDashboard:
		return "redirect_dashboard"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Reason codes carried on non-pass decisions. Page redirects expose them as the
// error query parameter.
const (
	ReasonAuthRequired            = "auth-required"
	ReasonAuthError               = "auth-error"
	ReasonInsufficientPermissions = "insufficient-permissions"
	ReasonRBACError               = "rbac-error"
	ReasonMiddlewareError         = "middleware-error"
)

// Decision is the per-request outcome of the access chain.
type Decision struct {
	Outcome Outcome
	Class   RouteClass
	// Path is the request path as received.
	Path string
	// CheckedPath is the path matched against the policy (after any API rewrite).
	CheckedPath string
	Role        domainauth.Role
	Reason      string
}

// Passed reports whether the request may continue down the handler chain.
func (d Decision) Passed() bool { return d.Outcome == OutcomePass }

// Unauthenticated builds the decision for a request without a valid session.
func Unauthenticated(path, reason string) Decision {
	d := Decision{Class: Classify(path), Path: path, Reason: reason}
	if d.Class == ClassAPI {
		d.Outcome = OutcomeUnauthorized
	} else {
		d.Outcome = OutcomeRedirectLogin
	}
	return d
}

// Denied builds the decision for an authenticated request that may not proceed.
func Denied(role domainauth.Role, path, reason string) Decision {
	d := Decision{Class: Classify(path), Path: path, Role: role, Reason: reason}
	if d.Class == ClassAPI {
		d.Outcome = OutcomeForbidden
	} else {
		d.Outcome = OutcomeRedirectDashboard
	}
	return d
}

// Failed builds the decision for a chain that could not complete. Pages go back to
// the login screen; API requests get a 500.
func Failed(path string) Decision {
	d := Decision{Class: Classify(path), Path: path, Reason: ReasonMiddlewareError}
	if d.Class == ClassAPI {
		d.Outcome = OutcomeError
	} else {
		d.Outcome = OutcomeRedirectLogin
	}
	return d
}

// Decide evaluates role against path.
func (p *Policy) Decide(role domainauth.Role, path string) Decision {
	checked := p.CheckedPath(path)
	if p.Allows(role, path) {
		return Decision{
			Outcome:     OutcomePass,
			Class:       Classify(path),
			Path:        path,
			CheckedPath: checked,
			Role:        role,
		}
	}
	d := Denied(role, path, ReasonInsufficientPermissions)
	d.CheckedPath = checked
	return d
}
