package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/target/powra-portal/internal/ports"
)

// CookieConfig controls attributes of cookies written by the portal.
type CookieConfig struct {
	// Domain is the cookie domain. Empty uses the request host.
	Domain string
	// Secure forces the Secure attribute. HTTPS requests always get it.
	Secure bool
}

// RequestCookies binds ports.Cookies to one request/response pair. Writes are
// visible to later reads on the same request.
type RequestCookies struct {
	w       http.ResponseWriter
	r       *http.Request
	cfg     CookieConfig
	pending map[string]*string
}

var _ ports.Cookies = (*RequestCookies)(nil)

// NewRequestCookies returns the cookie capability for r, writing to w.
func NewRequestCookies(w http.ResponseWriter, r *http.Request, cfg CookieConfig) *RequestCookies {
	return &RequestCookies{w: w, r: r, cfg: cfg}
}

// Get returns the named cookie value.
func (c *RequestCookies) Get(name string) (string, bool) {
	if v, ok := c.pending[name]; ok {
		if v == nil {
			return "", false
		}
		return *v, true
	}
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

// Set writes an HttpOnly, SameSite=Lax cookie. A non-positive maxAge writes a session cookie.
func (c *RequestCookies) Set(name, value string, maxAge time.Duration) {
	ck := c.base(name)
	ck.Value = value
	if maxAge > 0 {
		ck.MaxAge = int(maxAge.Seconds())
		ck.Expires = time.Now().Add(maxAge).UTC()
	}
	http.SetCookie(c.w, ck)
	c.remember(name, &value)
}

// Remove expires the named cookie on the client.
func (c *RequestCookies) Remove(name string) {
	ck := c.base(name)
	ck.MaxAge = -1
	ck.Expires = time.Unix(0, 0).UTC()
	http.SetCookie(c.w, ck)
	c.remember(name, nil)
}

func (c *RequestCookies) base(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Path:     "/",
		Domain:   c.cfg.Domain,
		HttpOnly: true,
		Secure:   c.cfg.Secure || isHTTPS(c.r),
		SameSite: http.SameSiteLaxMode,
	}
}

func (c *RequestCookies) remember(name string, v *string) {
	if c.pending == nil {
		c.pending = make(map[string]*string)
	}
	c.pending[name] = v
}

// isHTTPS reports whether r arrived over TLS, directly or through a proxy.
// X-Forwarded-Proto may carry a comma-separated chain.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	for proto := range strings.SplitSeq(r.Header.Get("X-Forwarded-Proto"), ",") {
		if strings.EqualFold(strings.TrimSpace(proto), "https") {
			return true
		}
	}
	return false
}
