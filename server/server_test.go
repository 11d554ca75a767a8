package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-discord-oauth/auth"
	"github.com/jrsteele09/go-discord-oauth/discord"
	"github.com/jrsteele09/go-discord-oauth/discord/discordtest"
	"github.com/jrsteele09/go-discord-oauth/instrumentation"
	"github.com/jrsteele09/go-discord-oauth/internal/config"
	"github.com/jrsteele09/go-discord-oauth/server"
	"github.com/jrsteele09/go-discord-oauth/sessions"
	"github.com/jrsteele09/go-discord-oauth/token"
)

const oneWeek = 604800

type testFixture struct {
	discord *discordtest.Server
	http    *httptest.Server
	client  *http.Client
	tokens  *token.SessionTokens
	now     time.Time
}

func setEnv(t *testing.T, overrides map[string]string) {
	t.Helper()
	env := map[string]string{
		"ENV":            "TEST",
		"CLIENT_ID":      "client-1",
		"CLIENT_SECRET":  "secret-1",
		"RATE_LIMIT_RPS": "0",
	}
	for k, v := range overrides {
		env[k] = v
	}
	for k, v := range env {
		t.Setenv(k, v)
	}
}

func newSessionTokens(t *testing.T, cfg config.Config) *token.SessionTokens {
	t.Helper()
	signer, err := token.NewDerivedHMACSigner([]byte("test-secret"), token.SessionCookiePurpose)
	require.NoError(t, err)
	return token.NewSessionTokens(signer, cfg.GetAppName(), cfg.GetSessionTTL())
}

// setupTestFixture serves the real flow against a fake Discord API
func setupTestFixture(t *testing.T, env map[string]string) *testFixture {
	t.Helper()
	setEnv(t, env)
	cfg := config.New()

	f := &testFixture{
		discord: discordtest.NewServer(t),
		now:     time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}

	inst, err := instrumentation.New(instrumentation.Config{Enabled: true})
	require.NoError(t, err)

	discordClient, err := discord.NewClient(&discord.Config{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		RedirectURL:  cfg.GetRedirectURI(),
		Scopes:       cfg.GetScopes(),
		APIURL:       f.discord.APIURL(),
		Metrics:      inst.Metrics(),
	})
	require.NoError(t, err)

	repo := sessions.NewInMemoryRepo(cfg.GetSessionTTL())
	t.Cleanup(repo.Close)

	flow, err := auth.NewSessionFlow(discordClient, repo,
		auth.WithNowTime(func() time.Time { return f.now }),
		auth.WithMetrics(inst.Metrics()),
	)
	require.NoError(t, err)
	t.Cleanup(flow.Close)

	f.tokens = newSessionTokens(t, cfg)
	srv, err := server.New(cfg, flow, f.tokens, inst)
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	f.http = httptest.NewServer(srv)
	t.Cleanup(f.http.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	f.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

func (f *testFixture) acceptLogin() {
	f.discord.OnToken(func(form url.Values) (int, any) {
		if form.Get("grant_type") == "refresh_token" {
			return http.StatusOK, discordtest.Token("A2", "R2", 3600)
		}
		return http.StatusOK, discordtest.Token("A1", "R1", oneWeek)
	})
	f.discord.OnProfile(func(string) (int, any) {
		return http.StatusOK, discordtest.Alice()
	})
}

func (f *testFixture) do(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, nil)
	require.NoError(t, err)
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

// startLogin requests "/" and returns the state Discord would echo back
func (f *testFixture) startLogin(t *testing.T) string {
	t.Helper()
	resp := f.do(t, http.MethodGet, "/")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func (f *testFixture) callback(t *testing.T, query url.Values) *http.Response {
	t.Helper()
	return f.do(t, http.MethodGet, server.RouteCallback+"?"+query.Encode())
}

func decode(t *testing.T, resp *http.Response) server.FlowResponse {
	t.Helper()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body server.FlowResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestIndex_RedirectsToDiscordWithCookie(t *testing.T) {
	f := setupTestFixture(t, nil)

	resp := f.do(t, http.MethodGet, "/")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "discord.com", location.Host)
	require.Equal(t, "/oauth2/authorize", location.Path)
	require.Equal(t, "client-1", location.Query().Get("client_id"))
	require.Equal(t, "http://localhost:3000/api/discord/callback", location.Query().Get("redirect_uri"))
	require.Equal(t, "code", location.Query().Get("response_type"))

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "discord_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.False(t, cookie.Secure)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, int((24 * time.Hour).Seconds()), cookie.MaxAge)

	sessionID, err := f.tokens.Parse(cookie.Value)
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)
	require.Equal(t, "SAMEORIGIN", resp.Header.Get("X-Frame-Options"))
}

func TestIndex_SecureCookieBehindTLSProxy(t *testing.T) {
	f := setupTestFixture(t, nil)

	req, err := http.NewRequest(http.MethodGet, f.http.URL+"/", nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-Proto", "https")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, resp.Cookies(), 1)
	require.True(t, resp.Cookies()[0].Secure)
}

func TestLoginAndRefresh(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.acceptLogin()
	state := f.startLogin(t)

	resp := f.callback(t, url.Values{"code": {"C1"}, "state": {state}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	expiresAt := f.now.Add(oneWeek * time.Second)
	require.Equal(t, "login_succeeded", body.Code)
	require.Equal(t, "Hello alice#0001! PS: This access token will expire on "+expiresAt.Format(time.RFC1123)+".", body.Message)
	require.Equal(t, "1", body.Profile.ID)
	require.True(t, expiresAt.Equal(*body.ExpiresAt))

	// The nonce was spent, but the session is now authenticated.
	resp = f.callback(t, url.Values{"code": {"C2"}, "state": {state}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "already_authenticated", decode(t, resp).Code)
	require.Len(t, f.discord.TokenRequests(), 1)

	resp = f.do(t, http.MethodPost, server.RouteRefresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body = decode(t, resp)
	require.Equal(t, "refresh_succeeded", body.Code)
	require.Equal(t, "Token has been regenerated! This access token will expire on "+f.now.Add(time.Hour).Format(time.RFC1123), body.Message)
	require.Nil(t, body.Profile)

	resp = f.do(t, http.MethodGet, server.RouteRefresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	requests := f.discord.TokenRequests()
	require.Len(t, requests, 3)
	require.Equal(t, "R1", requests[1].Get("refresh_token"))
	require.Equal(t, "R2", requests[2].Get("refresh_token"))
}

func TestCallback_StatusMapping(t *testing.T) {
	t.Run("denied", func(t *testing.T) {
		f := setupTestFixture(t, nil)
		state := f.startLogin(t)

		resp := f.callback(t, url.Values{"error": {"access_denied"}, "error_description": {"user said no"}, "state": {state}})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		body := decode(t, resp)
		require.Equal(t, "authorization_denied", body.Code)
		require.Contains(t, body.Message, "user said no")
		require.Empty(t, f.discord.TokenRequests())
	})

	t.Run("state mismatch restarts", func(t *testing.T) {
		f := setupTestFixture(t, nil)
		f.startLogin(t)

		resp := f.callback(t, url.Values{"code": {"C1"}, "state": {"forged"}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
		require.Equal(t, "/", resp.Header.Get("Location"))
		require.Empty(t, f.discord.TokenRequests())
	})

	t.Run("no cookie restarts", func(t *testing.T) {
		f := setupTestFixture(t, nil)
		resp := f.callback(t, url.Values{"code": {"C1"}, "state": {"anything"}})
		require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	})

	t.Run("exchange failure", func(t *testing.T) {
		f := setupTestFixture(t, nil)
		state := f.startLogin(t)

		resp := f.callback(t, url.Values{"code": {"C1"}, "state": {state}})
		require.Equal(t, http.StatusBadGateway, resp.StatusCode)
		require.Equal(t, "exchange_failed", decode(t, resp).Code)
	})
}

func TestRefresh_WithoutSession(t *testing.T) {
	f := setupTestFixture(t, nil)

	resp := f.do(t, http.MethodPost, server.RouteRefresh)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "no_active_session", decode(t, resp).Code)

	u, err := url.Parse(f.http.URL)
	require.NoError(t, err)
	f.client.Jar.SetCookies(u, []*http.Cookie{{Name: "discord_session", Value: "forged.token.value"}})
	resp = f.do(t, http.MethodPost, server.RouteRefresh)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	require.Empty(t, f.discord.TokenRequests())
}

func TestRefresh_ProviderFailure(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.acceptLogin()
	state := f.startLogin(t)
	resp := f.callback(t, url.Values{"code": {"C1"}, "state": {state}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f.discord.OnToken(func(url.Values) (int, any) {
		return http.StatusBadRequest, map[string]string{"error": "invalid_grant"}
	})
	resp = f.do(t, http.MethodPost, server.RouteRefresh)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Equal(t, "refresh_failed", decode(t, resp).Code)
}

func TestRateLimit(t *testing.T) {
	f := setupTestFixture(t, map[string]string{"RATE_LIMIT_RPS": "1", "RATE_LIMIT_BURST": "1"})

	resp := f.do(t, http.MethodPost, server.RouteRefresh)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = f.do(t, http.MethodPost, server.RouteRefresh)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.Equal(t, "1", resp.Header.Get("Retry-After"))
	require.Equal(t, "rate_limited", decode(t, resp).Code)
}

func TestRefresh_OptionsDoesNotRotateTokens(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.acceptLogin()
	state := f.startLogin(t)
	resp := f.callback(t, url.Values{"code": {"C1"}, "state": {state}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = f.do(t, http.MethodOptions, server.RouteRefresh)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Len(t, f.discord.TokenRequests(), 1)

	resp = f.do(t, http.MethodPost, server.RouteRefresh)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	requests := f.discord.TokenRequests()
	require.Len(t, requests, 2)
	require.Equal(t, "R1", requests[1].Get("refresh_token"))
}

func TestCors_Preflight(t *testing.T) {
	f := setupTestFixture(t, map[string]string{"ALLOWED_ORIGINS": "https://app.example.com"})

	req, err := http.NewRequest(http.MethodOptions, f.http.URL+server.RouteRefresh, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	resp, err := f.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	require.Equal(t, "GET, POST", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := setupTestFixture(t, nil)
	f.startLogin(t)

	resp := f.do(t, http.MethodGet, server.RouteMetrics)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), "oauth_login_started")
	require.Contains(t, string(raw), "oauth_http_requests")
}

func TestUnknownPath(t *testing.T) {
	f := setupTestFixture(t, nil)
	resp := f.do(t, http.MethodGet, "/nope")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// stubFlow fails or panics on every call
type stubFlow struct {
	err   error
	panic bool
}

func (s *stubFlow) BeginLogin(context.Context, string) (auth.LoginStart, error) {
	if s.panic {
		panic("boom")
	}
	return auth.LoginStart{}, s.err
}

func (s *stubFlow) HandleCallback(context.Context, string, auth.CallbackParams) (auth.Outcome, error) {
	return auth.Outcome{}, s.err
}

func (s *stubFlow) Refresh(context.Context, string) (auth.Outcome, error) {
	return auth.Outcome{}, s.err
}

func TestInfrastructureErrors(t *testing.T) {
	tests := []struct {
		name string
		flow *stubFlow
		path string
	}{
		{name: "begin login", flow: &stubFlow{err: errors.New("store down")}, path: "/"},
		{name: "callback", flow: &stubFlow{err: errors.New("store down")}, path: server.RouteCallback + "?code=C1&state=s"},
		{name: "refresh", flow: &stubFlow{err: errors.New("store down")}, path: server.RouteRefresh},
		{name: "panic", flow: &stubFlow{panic: true}, path: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, nil)
			cfg := config.New()
			srv, err := server.New(cfg, tt.flow, newSessionTokens(t, cfg), nil)
			require.NoError(t, err)
			t.Cleanup(srv.Close)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			require.Equal(t, http.StatusInternalServerError, rec.Code)
			require.True(t, strings.Contains(rec.Body.String(), `"code":"internal_error"`))
		})
	}
}

func TestNew_RequiresDependencies(t *testing.T) {
	setEnv(t, nil)
	cfg := config.New()
	_, err := server.New(cfg, nil, newSessionTokens(t, cfg), nil)
	require.Error(t, err)
	_, err = server.New(cfg, &stubFlow{}, nil, nil)
	require.Error(t, err)
}
