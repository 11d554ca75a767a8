package auth

import (
	"net/url"
	"strings"
)

// CallbackParams are the query parameters Discord appends to the redirect URI.
// Either Error is set (the user declined, or the request was invalid) or Code is.
type CallbackParams struct {
	Error            string
	ErrorDescription string
	Code             string
	State            string
}

// CallbackParamsFromQuery reads the callback parameters from a parsed query string. Values
// are already URL-decoded.
func CallbackParamsFromQuery(query url.Values) CallbackParams {
	return CallbackParams{
		Error:            strings.TrimSpace(query.Get("error")),
		ErrorDescription: query.Get("error_description"),
		Code:             query.Get("code"),
		State:            query.Get("state"),
	}
}

// LoginStart is the result of BeginLogin: the session that holds the nonce and the consent
// screen URL the browser is sent to.
type LoginStart struct {
	SessionID   string
	RedirectURL string
}
