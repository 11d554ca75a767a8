// Package discord is the client side of Discord's OAuth2 Authorization Code Grant.
//
// It builds the consent screen URL, exchanges authorization codes and refresh tokens at
// the token endpoint, and reads the authorized user's profile from users/@me.
//
// Discord expects the client credentials in the form body rather than in a Basic
// Authorization header, so the underlying oauth2.Config uses oauth2.AuthStyleInParams.
//
// When the requested scopes include "openid", the token response carries an ID token.
// Its signature, issuer and audience are verified with go-oidc and the verified subject is
// returned in TokenSet.IDTokenSubject.
//
// # Example Usage
//
//	client, err := discord.NewClient(&discord.Config{
//	    ClientID:     os.Getenv("CLIENT_ID"),
//	    ClientSecret: os.Getenv("CLIENT_SECRET"),
//	    RedirectURL:  "http://localhost:3000/api/discord/callback",
//	    Scopes:       []string{"identify"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	http.Redirect(w, r, client.AuthCodeURL(state), http.StatusFound)
package discord
