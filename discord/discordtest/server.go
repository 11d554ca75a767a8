// Package discordtest provides a fake Discord API for tests.
package discordtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
)

// TokenHandler answers a token endpoint request given its parsed form body.
type TokenHandler func(form url.Values) (status int, body any)

// ProfileHandler answers a users/@me request given its Authorization header.
type ProfileHandler func(authorization string) (status int, body any)

// Server is an httptest server speaking the subset of Discord's API used by the service.
type Server struct {
	*httptest.Server

	mu              sync.Mutex
	onToken         TokenHandler
	onProfile       ProfileHandler
	tokenRequests   []url.Values
	profileRequests []string
}

// NewServer starts a fake that rejects every call until handlers are installed.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{
		onToken: func(url.Values) (int, any) {
			return http.StatusBadRequest, map[string]string{"error": "invalid_grant"}
		},
		onProfile: func(string) (int, any) {
			return http.StatusUnauthorized, map[string]string{"message": "401: Unauthorized"}
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v9/oauth2/token", s.handleToken)
	mux.HandleFunc("GET /api/v9/users/@me", s.handleProfile)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// APIURL is the value for DISCORD_API_URL.
func (s *Server) APIURL() string {
	return s.URL + "/api/v9/"
}

func (s *Server) OnToken(h TokenHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onToken = h
}

func (s *Server) OnProfile(h ProfileHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onProfile = h
}

// TokenRequests returns the form bodies received by the token endpoint, in order.
func (s *Server) TokenRequests() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.tokenRequests...)
}

// ProfileRequests returns the Authorization headers received by users/@me, in order.
func (s *Server) ProfileRequests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.profileRequests...)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.tokenRequests = append(s.tokenRequests, r.PostForm)
	h := s.onToken
	s.mu.Unlock()

	status, body := h(r.PostForm)
	writeJSON(w, status, body)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	authz := r.Header.Get("Authorization")
	s.mu.Lock()
	s.profileRequests = append(s.profileRequests, authz)
	h := s.onProfile
	s.mu.Unlock()

	status, body := h(authz)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Token is a convenience token endpoint response.
func Token(access, refresh string, expiresIn int) map[string]any {
	body := map[string]any{
		"access_token": access,
		"token_type":   "Bearer",
		"expires_in":   expiresIn,
		"scope":        "identify",
	}
	if refresh != "" {
		body["refresh_token"] = refresh
	}
	return body
}

// Alice is the profile used throughout the tests.
func Alice() map[string]any {
	return map[string]any{
		"id":            "1",
		"username":      "alice",
		"discriminator": "0001",
	}
}
