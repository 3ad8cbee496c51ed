// Package oidc provides OIDC/OAuth authentication adapters for the POWRA portal.
package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/powra-portal/internal/domain/auth"
	"github.com/target/powra-portal/internal/ports"
	"golang.org/x/oauth2"
)

// Provider implements the AuthProvider interface using OIDC/OAuth2.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scope        string
	DiscoveryURL string
	HTTPClient   *http.Client // Optional, defaults to a 30s client
	// Now overrides the verifier clock (tests).
	Now func() time.Time
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider creates a new OIDC provider. It performs a single discovery fetch.
func NewProvider(ctx context.Context, config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.ClientSecret == "" {
		return nil, errors.New("client secret is required")
	}
	if config.RedirectURL == "" {
		return nil, errors.New("redirect URL is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx = gooidc.ClientContext(ctx, httpClient)
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}

	return &Provider{
		httpClient:   httpClient,
		oidcProvider: op,
		verifier:     op.Verifier(&gooidc.Config{ClientID: config.ClientID, Now: config.Now}),
		config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			RedirectURL:  config.RedirectURL,
			Scopes:       strings.Fields(config.Scope),
			Endpoint:     op.Endpoint(),
		},
	}, nil
}

func (p *Provider) Begin(_ context.Context, in ports.BeginInput) (string, string, string, error) {
	if in.RedirectURL == "" {
		return "", "", "", errors.New("redirect URL is required")
	}

	state, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate state: %w", err)
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return "", "", "", fmt.Errorf("generate nonce: %w", err)
	}

	// redirect_uri must match the configured RedirectURL exactly, so it is not overridden here.
	authURL := p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
	return authURL, state, nonce, nil
}

func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (ports.ExchangeResult, error) {
	if in.Code == "" {
		return ports.ExchangeResult{}, errors.New("authorization code is required")
	}
	if in.State == "" {
		return ports.ExchangeResult{}, errors.New("state is required")
	}
	if in.Nonce == "" {
		return ports.ExchangeResult{}, errors.New("nonce is required")
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	token, err := p.config.Exchange(ctx, in.Code)
	if err != nil {
		return ports.ExchangeResult{}, fmt.Errorf("exchange code for token: %w", err)
	}

	var (
		id    domainauth.Identity
		rawID string
	)
	if p.hasOpenIDScope() {
		rawID, err = getIDTokenFromToken(token)
		if err != nil {
			return ports.ExchangeResult{}, fmt.Errorf("extract id_token: %w", err)
		}
		id, err = verifyIdentity(ctx, p.verifier, rawID, in.Nonce)
		if err != nil {
			return ports.ExchangeResult{}, err
		}
	}

	if id.Email == "" || id.UserID == "" {
		if fillErr := p.fillFromUserInfo(ctx, token, &id); fillErr != nil {
			return ports.ExchangeResult{}, fmt.Errorf("get user info: %w", fillErr)
		}
	}
	if id.UserID == "" {
		return ports.ExchangeResult{}, errors.New("provider returned no subject")
	}

	if id.ExpiresAt.IsZero() {
		id.ExpiresAt = token.Expiry
	}
	if id.ExpiresAt.IsZero() {
		id.ExpiresAt = time.Now().Add(time.Hour)
	}

	return ports.ExchangeResult{
		Identity: id,
		Tokens: ports.Tokens{
			AccessToken:  token.AccessToken,
			IDToken:      rawID,
			RefreshToken: token.RefreshToken,
			Expiry:       token.Expiry,
		},
	}, nil
}

// TokenSessions returns a cookie-backed session introspector sharing this provider's verifier
// and token endpoint.
func (p *Provider) TokenSessions(opts TokenSessionOptions) *TokenSessions {
	opts.Verifier = p.verifier
	opts.OAuth2 = p.config
	if opts.HTTPClient == nil {
		opts.HTTPClient = p.httpClient
	}
	return NewTokenSessions(opts)
}

func (p *Provider) fillFromUserInfo(ctx context.Context, tok *oauth2.Token, id *domainauth.Identity) error {
	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return fmt.Errorf("fetch user info: %w", err)
	}
	var c identityClaims
	if claimsErr := ui.Claims(&c); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	var raw map[string]any
	if claimsErr := ui.Claims(&raw); claimsErr != nil {
		return fmt.Errorf("decode user info: %w", claimsErr)
	}
	fillIdentity(id, c, raw)
	return nil
}

// verifyIdentity verifies a raw ID token and maps its claims. An empty nonce skips the nonce check.
func verifyIdentity(ctx context.Context, v *gooidc.IDTokenVerifier, rawID, nonce string) (domainauth.Identity, error) {
	idTok, err := v.Verify(ctx, rawID)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}
	var c identityClaims
	if claimsErr := idTok.Claims(&c); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	if nonce != "" && idTok.Nonce != nonce {
		return domainauth.Identity{}, errors.New("invalid nonce")
	}
	var raw map[string]any
	if claimsErr := idTok.Claims(&raw); claimsErr != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", claimsErr)
	}
	var id domainauth.Identity
	fillIdentity(&id, c, raw)
	id.ExpiresAt = idTok.Expiry
	return id, nil
}

// identityClaims is a superset of standard OIDC and AD/ADFS claim shapes.
type identityClaims struct {
	Sub            string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	Email          string   `json:"email"`
	Mail           string   `json:"mail"`
	GivenName      string   `json:"given_name"`
	FamilyName     string   `json:"family_name"`
	FirstName      string   `json:"firstname"`
	LastName       string   `json:"lastname"`
	Groups         []string `json:"groups"`
	MemberOf       []string `json:"memberof"`
}

// registeredClaims are protocol fields, not identity metadata.
var registeredClaims = []string{"iss", "aud", "exp", "iat", "nbf", "nonce", "at_hash", "c_hash", "azp", "auth_time", "jti"}

// fillIdentity fills empty identity fields from claims without overwriting existing values.
func fillIdentity(id *domainauth.Identity, c identityClaims, raw map[string]any) {
	if id.UserID == "" {
		id.UserID = firstNonEmpty(c.SamAccountName, c.Sub)
	}
	if id.Email == "" {
		id.Email = firstNonEmpty(c.Email, c.Mail)
	}
	if id.FirstName == "" {
		id.FirstName = firstNonEmpty(c.GivenName, c.FirstName)
	}
	if id.LastName == "" {
		id.LastName = firstNonEmpty(c.FamilyName, c.LastName)
	}
	if len(id.Groups) == 0 {
		id.Groups = c.Groups
		if len(id.Groups) == 0 {
			id.Groups = c.MemberOf
		}
	}
	if len(raw) == 0 {
		return
	}
	if id.Metadata == nil {
		id.Metadata = make(map[string]any, len(raw))
	}
	for k, v := range raw {
		if slices.Contains(registeredClaims, k) {
			continue
		}
		if _, ok := id.Metadata[k]; !ok {
			id.Metadata[k] = v
		}
	}
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// generateRandomString generates a cryptographically secure URL-safe random string of exact length.
func generateRandomString(length int) (string, error) {
	if length <= 0 {
		return "", nil
	}
	b := make([]byte, (length*3+3)/4+1)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length], nil
}

func (p *Provider) hasOpenIDScope() bool {
	return slices.Contains(p.config.Scopes, "openid")
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	s, ok := tok.Extra("id_token").(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
