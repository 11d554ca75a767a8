package discord

import "time"

// GrantType is the OAuth 2.0 grant type sent to the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for a new token pair.
	// Discord refresh tokens are single use.
	RefreshTokenGrant GrantType = "refresh_token"
)

// TokenSet is the part of a token endpoint response the service keeps.
type TokenSet struct {
	AccessToken string
	TokenType   string

	// RefreshToken is empty when the response did not include one.
	RefreshToken string
	Scope        string

	// ExpiresIn is the provider reported lifetime of the access token (0 if not reported).
	ExpiresIn time.Duration

	// IDToken and IDTokenSubject are set only for verified OpenID responses.
	IDToken        string
	IDTokenSubject string
}

// AuthorizationHeader returns the value for the Authorization header, e.g. "Bearer abc".
func (t *TokenSet) AuthorizationHeader() string {
	return t.TokenType + " " + t.AccessToken
}

// Profile is the subset of Discord's user object returned by users/@me.
type Profile struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	GlobalName    string `json:"global_name,omitempty"`
	Avatar        string `json:"avatar,omitempty"`
	Email         string `json:"email,omitempty"`
	Verified      bool   `json:"verified,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

// Tag returns "username#discriminator", or just the username for accounts migrated to
// unique usernames (discriminator "0").
func (p *Profile) Tag() string {
	if p.Discriminator == "" || p.Discriminator == "0" {
		return p.Username
	}
	return p.Username + "#" + p.Discriminator
}
