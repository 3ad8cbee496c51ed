package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/powra-portal/internal/domain/access"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
)

// dashboardSections are the navigable areas behind /dashboard, shown when the
// caller's role may reach them.
var dashboardSections = []NavLink{ //nolint:gochecknoglobals // read-only navigation table
	{Label: "Documents", Href: "/dashboard/documents"},
	{Label: "Forms", Href: "/dashboard/forms"},
	{Label: "Users", Href: "/dashboard/admin/users"},
}

// PageHandlers renders the dashboard pages. All routes sit behind the access chain.
type PageHandlers struct {
	Renderer *TemplateRenderer
	Policy   *access.Policy
	Users    UserAdminService
	// IsDev shows error detail passed back from the access chain.
	IsDev  bool
	Logger *slog.Logger
}

func (h *PageHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *PageHandlers) base(r *http.Request, title string) PageData {
	data := PageData{Title: title, Role: RoleFromContext(r.Context()), CSRFToken: GetCSRFToken(r)}
	if sess, ok := SessionFromContext(r.Context()); ok {
		data.Session = &sess
	}
	for _, link := range dashboardSections {
		if h.Policy.Allows(data.Role, link.Href) {
			data.Nav = append(data.Nav, link)
		}
	}
	return data
}

func (h *PageHandlers) render(w http.ResponseWriter, r *http.Request, page string, data PageData) {
	if err := h.Renderer.Render(w, page, data); err != nil {
		h.logger().ErrorContext(r.Context(), "render page failed", "page", page, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// Dashboard renders the landing page, surfacing any error the access chain redirected with.
// GET /dashboard.
func (h *PageHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	data := h.base(r, "Dashboard")
	q := r.URL.Query()
	data.Flash = FlashMessage(q.Get("error"))
	if h.IsDev {
		data.Detail = q.Get("message")
	}
	h.render(w, r, PageDashboard, data)
}

// Profile renders the caller's account details.
// GET /dashboard/me.
func (h *PageHandlers) Profile(w http.ResponseWriter, r *http.Request) {
	data := h.base(r, "My account")
	data.Access = h.Policy.AllowedPrefixes(data.Role)
	data.APIRewrite = h.Policy.RewritesAPI()
	h.render(w, r, PageProfile, data)
}

// Section returns a handler rendering a placeholder landing page for a dashboard area.
func (h *PageHandlers) Section(title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, r, PageSection, h.base(r, title))
	}
}

// AdminUsers renders the user directory.
// GET /dashboard/admin/users.
func (h *PageHandlers) AdminUsers(w http.ResponseWriter, r *http.Request) {
	data := h.base(r, "Users")
	opts, filter, err := parseUsersListOptions(r)
	if err != nil {
		data.Flash = err.Error()
	}
	users, err := h.Users.List(r.Context(), opts)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "list users failed", "error", err)
		data.Flash = "Unable to load users."
	}
	filter.NextOffset = -1
	if len(users) == filter.Limit {
		filter.NextOffset = filter.Offset + filter.Limit
	}
	filter.PrevOffset = max(filter.Offset-filter.Limit, 0)
	data.Users = users
	data.Filter = filter
	data.Roles = domainauth.AllRoles()
	h.render(w, r, PageUsers, data)
}

// AdminHome sends the bare admin area to the user directory.
// GET /dashboard/admin.
func (h *PageHandlers) AdminHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard/admin/users", http.StatusFound)
}
