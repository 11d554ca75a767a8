package config

import (
	"slices"
	"strings"
	"time"
)

const (
	oauth2URLEnvVar      = "OAUTH2_URL"
	clientIDEnvVar       = "CLIENT_ID"
	clientSecretEnvVar   = "CLIENT_SECRET"
	redirectURIEnvVar    = "REDIRECT_URI"
	scopeEnvVar          = "SCOPE"
	apiURLEnvVar         = "DISCORD_API_URL"
	authorizeURLEnvVar   = "DISCORD_AUTHORIZE_URL"
	oidcIssuerEnvVar     = "OIDC_ISSUER"
	requestTimeoutEnvVar = "REQUEST_TIMEOUT"
)

// ProviderConfig holds the Discord application registration and API endpoints.
type ProviderConfig interface {
	GetOAuth2URL() string
	GetClientID() string
	GetClientSecret() string
	GetRedirectURI() string
	GetScopes() []string
	GetAPIURL() string
	GetAuthorizeURL() string
	GetOIDCIssuer() string
	GetRequestTimeout() time.Duration
	OpenIDRequested() bool
}

type Provider struct{}

var _ ProviderConfig = Provider{}

// GetOAuth2URL returns the authorization URL generated by the Discord developer portal, if any.
func (Provider) GetOAuth2URL() string {
	return GetEnv(oauth2URLEnvVar, "")
}

func (Provider) GetClientID() string {
	return GetEnv(clientIDEnvVar, "")
}

func (Provider) GetClientSecret() string {
	return GetEnv(clientSecretEnvVar, "")
}

func (Provider) GetRedirectURI() string {
	return GetEnv(redirectURIEnvVar, "http://localhost:3000/api/discord/callback")
}

// GetScopes splits SCOPE on whitespace (and '+', as pasted from portal URLs).
func (Provider) GetScopes() []string {
	raw := strings.ReplaceAll(GetEnv(scopeEnvVar, "identify"), "+", " ")
	return strings.Fields(raw)
}

// GetAPIURL always ends with a slash so endpoint paths can be appended.
func (Provider) GetAPIURL() string {
	apiURL := GetEnv(apiURLEnvVar, "https://discord.com/api/v9/")
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	return apiURL
}

func (Provider) GetAuthorizeURL() string {
	return GetEnv(authorizeURLEnvVar, "https://discord.com/oauth2/authorize")
}

func (Provider) GetOIDCIssuer() string {
	return GetEnv(oidcIssuerEnvVar, "https://discord.com")
}

func (Provider) GetRequestTimeout() time.Duration {
	return GetEnvDuration(requestTimeoutEnvVar, 10*time.Second)
}

// OpenIDRequested reports whether the configured scopes ask for an ID token.
func (p Provider) OpenIDRequested() bool {
	return slices.Contains(p.GetScopes(), "openid")
}
