package httpx

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/domain/model"
)

// TemplateRenderer renders HTML pages. Each page template is parsed together with
// the shared layout so pages can redefine the "content" block.
type TemplateRenderer struct {
	fsys    fs.FS
	devMode bool // Reparse on each render
	logger  *slog.Logger
	pages   map[string]*template.Template
}

// TemplateRendererConfig holds configuration for creating a TemplateRenderer.
type TemplateRendererConfig struct {
	TemplateFS fs.FS        // Filesystem containing layout.tmpl and pages/*.tmpl (required)
	DevMode    bool         // Enable hot reloading of templates
	Logger     *slog.Logger // Logger for template errors (optional)
}

// NewTemplateRenderer constructs a renderer by parsing templates from the provided config.
func NewTemplateRenderer(cfg TemplateRendererConfig) (*TemplateRenderer, error) {
	if cfg.TemplateFS == nil {
		return nil, errors.New("TemplateFS is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &TemplateRenderer{fsys: cfg.TemplateFS, devMode: cfg.DevMode, logger: logger}
	pages, err := r.parse()
	if err != nil {
		logger.Error("template parsing failed",
			slog.Any("error", err),
			slog.String("phase", "initialization"),
		)
		return nil, err
	}
	r.pages = pages
	return r, nil
}

func (r *TemplateRenderer) parse() (map[string]*template.Template, error) {
	base, err := template.New("root").Funcs(templateFuncs()).ParseFS(r.fsys, "*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}
	files, err := fs.Glob(r.fsys, "pages/*.tmpl")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template, len(files))
	for _, f := range files {
		clone, cloneErr := base.Clone()
		if cloneErr != nil {
			return nil, cloneErr
		}
		t, parseErr := clone.ParseFS(r.fsys, f)
		if parseErr != nil {
			return nil, fmt.Errorf("parse %s: %w", f, parseErr)
		}
		pages[strings.TrimSuffix(path.Base(f), ".tmpl")] = t
	}
	return pages, nil
}

// Render writes the named page wrapped in the layout.
func (r *TemplateRenderer) Render(w http.ResponseWriter, page string, data PageData) error {
	pages := r.pages
	if r.devMode {
		reloaded, err := r.parse()
		if err != nil {
			r.logger.Error("template reload failed", slog.Any("error", err))
		} else {
			pages = reloaded
		}
	}
	t, ok := pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	data.Page = page

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		r.logger.Error("template execution failed",
			slog.String("template", page),
			slog.Any("error", err),
		)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err := buf.WriteTo(w)
	return err
}

// NavLink is one entry of the dashboard navigation.
type NavLink struct {
	Label string
	Href  string
}

// PageData is the template payload for every page.
type PageData struct {
	Page  string
	Title string
	// Session is nil on public pages.
	Session *domainauth.Session
	Role    domainauth.Role
	Nav     []NavLink
	// Flash is a user-facing banner; Detail carries dev-only error text.
	Flash  string
	Detail string
	// SignInURL is the login entry point shown on the login page.
	SignInURL string
	// CSRFToken is echoed into forms that post back to the portal.
	CSRFToken string
	Users     []*model.User
	Filter    UsersFilter
	Roles     []domainauth.Role
	// Access lists the path prefixes the caller's role may open.
	Access     []string
	APIRewrite bool
}

// UsersFilter echoes the admin user list query back to the page.
type UsersFilter struct {
	Q      string
	Role   string
	Limit  int
	Offset int
	// NextOffset is -1 when there is no further page.
	NextOffset int
	PrevOffset int
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"displayName": func(first, last, email string) string {
			if name := strings.TrimSpace(first + " " + last); name != "" {
				return name
			}
			return email
		},
		"roleLabel": func(v any) string {
			raw := fmt.Sprint(v)
			role, ok := domainauth.ParseRole(raw)
			if !ok {
				return raw
			}
			return strings.ToUpper(role.String()[:1]) + role.String()[1:]
		},
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.UTC().Format("2006-01-02 15:04 MST")
		},
	}
}
