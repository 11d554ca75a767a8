package auth

import "errors"

var (
	ErrStateMissing   = errors.New("state parameter missing")
	ErrNoPendingLogin = errors.New("no login in progress for session")
	ErrStateMismatch  = errors.New("state parameter does not match")
)
