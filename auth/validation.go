package auth

import "crypto/subtle"

// ValidateState checks the state echoed back by the provider against the nonce stored for
// the session. The comparison is exact; no normalization is applied.
func ValidateState(stored, received string) error {
	if received == "" {
		return ErrStateMissing
	}
	if stored == "" {
		return ErrNoPendingLogin
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(received)) != 1 {
		return ErrStateMismatch
	}
	return nil
}
