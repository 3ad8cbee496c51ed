package httpx

// Page identifiers used by templates and navigation.
const (
	PageLogin     = "login"
	PageDashboard = "dashboard"
	PageProfile   = "profile"
	PageUsers     = "users"
	PageSection   = "section"
)

// Cookie names used during the login round trip.
const (
	OAuthStateCookie        = "oauth_state"
	OAuthNonceCookie        = "oauth_nonce"
	PostLoginRedirectCookie = "post_login_redirect"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "web/templates"       // From project root
	TemplatePathFromTest = "../../web/templates" // From internal/http test files
)

// flashMessages maps error query codes to user-facing text.
var flashMessages = map[string]string{ //nolint:gochecknoglobals // read-only lookup
	"insufficient-permissions": "You do not have permission to view that page.",
	"rbac-error":               "We could not verify your permissions. Please try again.",
	"auth-error":               "Your session could not be verified. Please sign in again.",
	"middleware-error":         "Something went wrong. Please sign in again.",
	"no_code":                  "Sign-in did not complete. Please try again.",
	"auth_failed":              "Sign-in failed. Please try again.",
}

// FlashMessage returns the text for an error query code. Unknown codes get a generic message.
func FlashMessage(code string) string {
	if code == "" {
		return ""
	}
	if msg, ok := flashMessages[code]; ok {
		return msg
	}
	return "Something went wrong."
}
