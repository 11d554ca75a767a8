package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-discord-oauth/auth"
	"github.com/jrsteele09/go-discord-oauth/discord"
)

const (
	internalErrorCode = "internal_error"
	rateLimitedCode   = "rate_limited"
	expiryTimeFormat  = time.RFC1123
)

// FlowResponse is the JSON body of the callback and refresh routes.
type FlowResponse struct {
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	Profile   *discord.Profile `json:"profile,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

// IndexHandler starts a login for the browser's session and redirects to Discord
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := s.flow.BeginLogin(r.Context(), s.sessionIDFromRequest(r))
		if err != nil {
			log.Err(err).Msg("failed to begin login")
			writeInternalError(w)
			return
		}

		if err := s.setSessionCookie(w, r, start.SessionID); err != nil {
			log.Err(err).Msg("failed to issue session cookie")
			writeInternalError(w)
			return
		}
		http.Redirect(w, r, start.RedirectURL, http.StatusFound)
	}
}

// CallbackHandler completes the login Discord redirected back from
func (s *Server) CallbackHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params := auth.CallbackParamsFromQuery(r.URL.Query())
		outcome, err := s.flow.HandleCallback(r.Context(), s.sessionIDFromRequest(r), params)
		if err != nil {
			log.Err(err).Msg("failed to handle callback")
			writeInternalError(w)
			return
		}

		if outcome.Kind == auth.RestartRequired {
			http.Redirect(w, r, RouteIndex, http.StatusSeeOther)
			return
		}
		writeOutcome(w, outcome)
	}
}

// RefreshHandler exchanges the session's refresh token for a new token pair
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := s.flow.Refresh(r.Context(), s.sessionIDFromRequest(r))
		if err != nil {
			log.Err(err).Msg("failed to refresh token")
			writeInternalError(w)
			return
		}
		writeOutcome(w, outcome)
	}
}

// PreflightHandler answers OPTIONS without touching the session. CorsMiddleware has already
// set any CORS headers.
func (s *Server) PreflightHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeOutcome(w http.ResponseWriter, outcome auth.Outcome) {
	resp := FlowResponse{
		Code:    outcome.Kind.String(),
		Message: outcomeMessage(outcome),
	}
	switch outcome.Kind {
	case auth.LoginSucceeded, auth.AlreadyAuthenticated:
		resp.Profile = outcome.Profile
	}
	if !outcome.ExpiresAt.IsZero() {
		expiresAt := outcome.ExpiresAt.UTC()
		resp.ExpiresAt = &expiresAt
	}
	writeJSON(w, outcomeStatus(outcome.Kind), resp)
}

func outcomeStatus(kind auth.OutcomeKind) int {
	switch kind {
	case auth.LoginSucceeded, auth.AlreadyAuthenticated, auth.RefreshSucceeded:
		return http.StatusOK
	case auth.AuthorizationDenied:
		return http.StatusForbidden
	case auth.ExchangeFailed, auth.RefreshFailed:
		return http.StatusBadGateway
	case auth.NoActiveSession:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func outcomeMessage(outcome auth.Outcome) string {
	switch outcome.Kind {
	case auth.LoginSucceeded:
		return fmt.Sprintf("Hello %s! PS: This access token will expire on %s.", profileTag(outcome.Profile), formatExpiry(outcome.ExpiresAt))
	case auth.AlreadyAuthenticated:
		return fmt.Sprintf("Already logged in as %s.", profileTag(outcome.Profile))
	case auth.AuthorizationDenied:
		return "Authorization was denied: " + outcome.Description
	case auth.ExchangeFailed:
		return "Could not complete the login with Discord. Please start again."
	case auth.RefreshSucceeded:
		return "Token has been regenerated! This access token will expire on " + formatExpiry(outcome.ExpiresAt)
	case auth.RefreshFailed:
		return "Could not regenerate the access token."
	case auth.NoActiveSession:
		return "No active session. Log in first."
	default:
		return ""
	}
}

func profileTag(p *discord.Profile) string {
	if p == nil {
		return "unknown user"
	}
	return p.Tag()
}

func formatExpiry(t time.Time) string {
	if t.IsZero() {
		return "an unknown date"
	}
	return t.UTC().Format(expiryTimeFormat)
}

func writeInternalError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, FlowResponse{
		Code:    internalErrorCode,
		Message: "Something went wrong. Please try again.",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Err(err).Msg("failed to write response")
	}
}
