package sessions

import (
	"time"

	"github.com/jrsteele09/go-discord-oauth/discord"
)

// Session is the per-browser record of the authorization flow.
// A session is keyed by ID, which the browser carries in a signed cookie.
type Session struct {
	ID string `json:"id"`

	// StateNonce is the anti-CSRF value issued by the last login start. Empty once consumed.
	StateNonce string `json:"state_nonce,omitempty"`

	// Tokens, set by a completed code exchange or refresh
	AccessToken  string    `json:"access_token,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitempty"` // advisory, not enforced

	// Profile is fetched once per successful login.
	Profile *discord.Profile `json:"profile,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasTokens reports whether a completed exchange or refresh populated the session.
func (s *Session) HasTokens() bool {
	return s.AccessToken != ""
}

// Clone returns a deep copy so stored sessions cannot be changed through returned values.
func (s *Session) Clone() *Session {
	c := *s
	if s.Profile != nil {
		p := *s.Profile
		c.Profile = &p
	}
	return &c
}
