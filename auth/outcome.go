package auth

import (
	"time"

	"github.com/jrsteele09/go-discord-oauth/discord"
)

// OutcomeKind is the machine readable result of a flow operation.
type OutcomeKind string

const (
	LoginSucceeded       OutcomeKind = "login_succeeded"
	AuthorizationDenied  OutcomeKind = "authorization_denied"
	RestartRequired      OutcomeKind = "restart_required"
	AlreadyAuthenticated OutcomeKind = "already_authenticated"
	ExchangeFailed       OutcomeKind = "exchange_failed"
	RefreshSucceeded     OutcomeKind = "refresh_succeeded"
	RefreshFailed        OutcomeKind = "refresh_failed"
	NoActiveSession      OutcomeKind = "no_active_session"
)

func (k OutcomeKind) String() string {
	return string(k)
}

// Outcome reports what a callback or refresh did. Provider failures are outcomes, not errors.
type Outcome struct {
	Kind OutcomeKind

	// Profile is set for LoginSucceeded and AlreadyAuthenticated.
	Profile *discord.Profile

	// ExpiresAt is set for LoginSucceeded, AlreadyAuthenticated and RefreshSucceeded.
	ExpiresAt time.Time

	// Description is the provider's error_description for AuthorizationDenied, or the
	// cause of an ExchangeFailed / RefreshFailed.
	Description string

	Err error
}

func failedOutcome(kind OutcomeKind, err error) Outcome {
	return Outcome{Kind: kind, Description: err.Error(), Err: err}
}
