package server

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// sessionCookieName holds the signed session token
const sessionCookieName = "discord_session"

// sessionIDFromRequest returns the session ID carried by the cookie, or "" when the cookie is
// missing, forged or expired.
func (s *Server) sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	sessionID, err := s.sessionTokens.Parse(cookie.Value)
	if err != nil {
		log.Debug().Err(err).Msg("ignoring session cookie")
		return ""
	}
	return sessionID
}

func (s *Server) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) error {
	value, err := s.sessionTokens.Issue(sessionID)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(s.sessionTokens.TTL().Seconds()),
	})
	return nil
}
