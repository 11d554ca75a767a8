package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/go-discord-oauth/instrumentation"
	apperrors "github.com/jrsteele09/go-discord-oauth/internal/errors"
	"golang.org/x/oauth2"
)

const (
	defaultAPIURL       = "https://discord.com/api/v9/"
	defaultAuthorizeURL = "https://discord.com/oauth2/authorize"
	tokenPath           = "oauth2/token"
	profilePath         = "users/@me"

	maxProfileBytes = 1 << 20
)

// Config holds Discord OAuth configuration.
type Config struct {
	// ClientID is the application's client ID.
	ClientID string

	// ClientSecret is the application's client secret.
	ClientSecret string

	// RedirectURL is the registered callback URL.
	RedirectURL string

	// Scopes are the requested scopes (defaults to ["identify"]).
	Scopes []string

	// PortalURL is an authorization URL generated by the developer portal. When set it is
	// used as is, with only the state parameter replaced.
	PortalURL string

	// AuthorizeURL is the consent screen (default: https://discord.com/oauth2/authorize).
	AuthorizeURL string

	// APIURL is the REST API base (default: https://discord.com/api/v9/).
	APIURL string

	// OIDCIssuer enables ID token verification through discovery when Scopes include
	// "openid" and no IDTokenVerifier is given.
	OIDCIssuer string

	// IDTokenVerifier overrides discovery based verification.
	IDTokenVerifier IDTokenVerifier

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// RequestTimeout bounds each API call when the caller's context has no deadline (default: 10s).
	RequestTimeout time.Duration

	// Metrics records provider calls; may be nil.
	Metrics *instrumentation.Metrics
}

// Client talks to Discord's OAuth2 and user endpoints.
type Client struct {
	oauth          *oauth2.Config
	portalURL      *url.URL
	profileURL     string
	httpClient     *http.Client
	requestTimeout time.Duration
	verifier       IDTokenVerifier
	metrics        *instrumentation.Metrics
}

// NewClient creates a new Discord OAuth client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client secret is required")
	}

	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = []string{"identify"}
	}
	scopesCopy := make([]string, len(scopes))
	copy(scopesCopy, scopes)

	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	authorizeURL := cfg.AuthorizeURL
	if authorizeURL == "" {
		authorizeURL = defaultAuthorizeURL
	}

	var portalURL *url.URL
	if cfg.PortalURL != "" {
		u, err := url.Parse(cfg.PortalURL)
		if err != nil {
			return nil, fmt.Errorf("invalid portal URL: %w", err)
		}
		portalURL = u
	}

	requestTimeout := cfg.RequestTimeout
	if requestTimeout == 0 {
		requestTimeout = 10 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	c := &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopesCopy,
			Endpoint: oauth2.Endpoint{
				AuthURL:   authorizeURL,
				TokenURL:  apiURL + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		portalURL:      portalURL,
		profileURL:     apiURL + profilePath,
		httpClient:     httpClient,
		requestTimeout: requestTimeout,
		verifier:       cfg.IDTokenVerifier,
		metrics:        cfg.Metrics,
	}

	if c.verifier == nil && cfg.OIDCIssuer != "" && containsScope(scopesCopy, "openid") {
		c.verifier = newDiscoveryVerifier(cfg.OIDCIssuer, cfg.ClientID, httpClient)
	}

	return c, nil
}

// AuthCodeURL returns the consent screen URL carrying state.
func (c *Client) AuthCodeURL(state string) string {
	if c.portalURL != nil {
		u := *c.portalURL
		q := u.Query()
		q.Set("state", state)
		u.RawQuery = q.Encode()
		return u.String()
	}
	return c.oauth.AuthCodeURL(state)
}

// ensureContextTimeout ensures the context has a deadline, adding one if needed.
func (c *Client) ensureContextTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.requestTimeout)
}

// ExchangeCode exchanges an authorization code for tokens (grant type authorization_code).
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenSet, error) {
	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	start := time.Now()
	token, err := c.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("scope", strings.Join(c.oauth.Scopes, " ")))
	c.metrics.RecordProviderCall(ctx, "token", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	set, err := tokenSetFrom(token)
	if err != nil {
		return nil, err
	}

	if c.verifier != nil {
		if set.IDToken == "" {
			return nil, apperrors.ErrMissingIDToken
		}
		idToken, err := c.verifier.Verify(ctx, set.IDToken)
		if err != nil {
			return nil, fmt.Errorf("ID token verification failed: %w", err)
		}
		set.IDTokenSubject = idToken.Subject
	}

	return set, nil
}

// RefreshToken exchanges a refresh token for a new token pair (grant type refresh_token).
// The returned RefreshToken is empty if the provider did not send a new one.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, apperrors.ErrNoRefreshToken
	}

	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	start := time.Now()
	token, err := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	c.metrics.RecordProviderCall(ctx, "token", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	return tokenSetFrom(token)
}

// FetchProfile reads users/@me with the given access token.
func (c *Client) FetchProfile(ctx context.Context, tokens *TokenSet) (*Profile, error) {
	ctx, cancel := c.ensureContextTimeout(ctx)
	defer cancel()

	start := time.Now()
	profile, err := c.fetchProfile(ctx, tokens)
	c.metrics.RecordProviderCall(ctx, "profile", err, time.Since(start))
	return profile, err
}

func (c *Client) fetchProfile(ctx context.Context, tokens *TokenSet) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", tokens.AuthorizationHeader())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: profile request failed with status %d", apperrors.ErrProviderResponse, resp.StatusCode)
	}

	var profile Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxProfileBytes)).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: profile has no id", apperrors.ErrProviderResponse)
	}
	return &profile, nil
}

// tokenSetFrom reads the wire fields from the raw response rather than the fields the
// oauth2 package derives, since it substitutes the request's refresh token when the response
// omits one and computes Expiry from its own clock.
func tokenSetFrom(token *oauth2.Token) (*TokenSet, error) {
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response has no access_token", apperrors.ErrProviderResponse)
	}

	set := &TokenSet{
		AccessToken:  token.AccessToken,
		TokenType:    token.Type(),
		RefreshToken: stringValue(token.Extra("refresh_token")),
		Scope:        stringValue(token.Extra("scope")),
		IDToken:      stringValue(token.Extra("id_token")),
	}

	if seconds, ok := int64Value(token.Extra("expires_in")); ok {
		set.ExpiresIn = time.Duration(seconds) * time.Second
	} else if !token.Expiry.IsZero() {
		set.ExpiresIn = time.Until(token.Expiry).Round(time.Second)
	}

	return set, nil
}

func stringValue(input any) string {
	switch v := input.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func int64Value(input any) (int64, bool) {
	switch v := input.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func containsScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
