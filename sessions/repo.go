package sessions

import "context"

// Repo defines the interface for session storage operations.
// Get returns errors.ErrSessionNotFound (internal/errors) for unknown or expired IDs.
type Repo interface {
	Get(ctx context.Context, sessionID string) (*Session, error)
	Upsert(ctx context.Context, session *Session) error
	Delete(ctx context.Context, sessionID string) error
}
