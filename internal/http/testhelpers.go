package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/target/powra-portal/internal/testutil"
)

// RequireTemplateRenderer creates a TemplateRenderer for tests, skipping the test if templates are not available.
func RequireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: os.DirFS(TemplatePathFromTest),
	})
	if err != nil {
		t.Skipf("Templates not available, skipping: %v", err)
		return nil
	}
	return tr
}

// ContainsAll checks if a string contains all the given substrings.
func ContainsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// JSONRequest describes one JSON call made by DoJSON.
type JSONRequest struct {
	Method  string
	URL     string
	Payload any
	Header  http.Header
	// Client overrides the shared test client, e.g. to carry a cookie jar.
	Client *http.Client
}

// DoJSON sends req with Accept: application/json and returns the response. The
// request context lives until the test ends so callers can read the body.
func DoJSON(t testutil.TestingTB, req JSONRequest) *http.Response {
	t.Helper()
	if req.Method == "" || req.URL == "" {
		t.Fatalf("DoJSON requires Method and URL, got %q %q", req.Method, req.URL)
	}

	var body bytes.Buffer
	if req.Payload != nil {
		if err := json.NewEncoder(&body).Encode(req.Payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	client := req.Client
	if client == nil {
		client = sharedTestClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	return resp
}

// sharedTestClient never follows redirects so tests see the portal's own 302s.
var sharedTestClient = &http.Client{ //nolint:gochecknoglobals // shared by test helpers
	Timeout: 10 * time.Second,
	CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	},
}
