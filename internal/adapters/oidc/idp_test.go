package oidc

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testClientID = "test-client"
	testKeyID    = "k1"
)

// fakeIDP is a minimal OIDC provider: discovery, JWKS, token and userinfo endpoints.
type fakeIDP struct {
	t      *testing.T
	srv    *httptest.Server
	key    *rsa.PrivateKey
	now    func() time.Time
	claims map[string]any

	mu           sync.Mutex
	codes        map[string]string // code -> nonce
	refreshCalls int
	// refreshStatus, when non-zero, is returned by refresh grants.
	refreshStatus int
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	f := &fakeIDP{
		t:     t,
		key:   key,
		now:   time.Now,
		codes: map[string]string{},
		claims: map[string]any{
			"sub":           "user-123",
			"email":         "jane@example.com",
			"given_name":    "Jane",
			"family_name":   "Doe",
			"user_metadata": map[string]any{"role": "supervisor"},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", f.discovery)
	mux.HandleFunc("/jwks", f.jwks)
	mux.HandleFunc("/token", f.token)
	mux.HandleFunc("/userinfo", f.userinfo)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeIDP) issuer() string { return f.srv.URL }

func (f *fakeIDP) addCode(code, nonce string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = nonce
}

func (f *fakeIDP) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSONBody(w, DiscoveryDocument{
		Issuer:                f.issuer(),
		AuthorizationEndpoint: f.issuer() + "/authorize",
		TokenEndpoint:         f.issuer() + "/token",
		UserinfoEndpoint:      f.issuer() + "/userinfo",
		JwksURI:               f.issuer() + "/jwks",
	})
}

func (f *fakeIDP) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := f.key.PublicKey
	writeJSONBody(w, map[string]any{"keys": []map[string]any{{
		"kty": "RSA",
		"kid": testKeyID,
		"alg": "RS256",
		"use": "sig",
		"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
		"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
	}}})
}

func (f *fakeIDP) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var nonce string
	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		f.mu.Lock()
		n, ok := f.codes[r.PostForm.Get("code")]
		f.mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		nonce = n
	case "refresh_token":
		f.mu.Lock()
		f.refreshCalls++
		status := f.refreshStatus
		f.mu.Unlock()
		if status != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
	}
	writeJSONBody(w, map[string]any{
		"access_token":  "access-" + r.PostForm.Get("grant_type"),
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": "refresh-next",
		"id_token":      f.sign(f.now().Add(time.Hour), nonce),
	})
}

func (f *fakeIDP) userinfo(w http.ResponseWriter, _ *http.Request) {
	writeJSONBody(w, f.claims)
}

// sign issues an RS256 ID token for the configured claims.
func (f *fakeIDP) sign(exp time.Time, nonce string) string {
	f.t.Helper()
	claims := map[string]any{
		"iss": f.issuer(),
		"aud": testClientID,
		"iat": exp.Add(-time.Hour).Unix(),
		"exp": exp.Unix(),
		"sid": "sid-1",
	}
	for k, v := range f.claims {
		claims[k] = v
	}
	if nonce != "" {
		claims["nonce"] = nonce
	}
	header, err := json.Marshal(map[string]string{"alg": "RS256", "kid": testKeyID, "typ": "JWT"})
	require.NoError(f.t, err)
	payload, err := json.Marshal(claims)
	require.NoError(f.t, err)

	signing := base64.RawURLEncoding.EncodeToString(header) + "." + base64.RawURLEncoding.EncodeToString(payload)
	sum := sha256.Sum256([]byte(signing))
	sig, err := rsa.SignPKCS1v15(rand.Reader, f.key, crypto.SHA256, sum[:])
	require.NoError(f.t, err)
	return signing + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func (f *fakeIDP) provider(t *testing.T, now func() time.Time) *Provider {
	t.Helper()
	p, err := NewProvider(t.Context(), ProviderConfig{
		ClientID:     testClientID,
		ClientSecret: "test-secret",
		RedirectURL:  "http://localhost:8080/auth/callback",
		Scope:        "openid profile email",
		DiscoveryURL: f.issuer() + "/.well-known/openid-configuration",
		Now:          now,
	})
	require.NoError(t, err)
	return p
}

func writeJSONBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
