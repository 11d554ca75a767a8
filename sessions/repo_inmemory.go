package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"
	apperrors "github.com/jrsteele09/go-discord-oauth/internal/errors"
)

// InMemoryRepo is a thread-safe in-memory implementation of Repo. Sessions expire after
// the configured TTL; every Upsert restarts the clock.
type InMemoryRepo struct {
	cache *ttlcache.Cache[string, *Session]
}

var _ Repo = (*InMemoryRepo)(nil)

// NewInMemoryRepo creates the repository and starts its expiry loop. Call Close to stop it.
func NewInMemoryRepo(ttl time.Duration) *InMemoryRepo {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *Session](ttl),
		ttlcache.WithDisableTouchOnHit[string, *Session](),
	)
	go cache.Start()

	return &InMemoryRepo{cache: cache}
}

func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}
	item := r.cache.Get(sessionID)
	if item == nil {
		return nil, apperrors.ErrSessionNotFound
	}
	return item.Value().Clone(), nil
}

func (r *InMemoryRepo) Upsert(_ context.Context, session *Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if session.ID == "" {
		return fmt.Errorf("sessionID is required")
	}
	r.cache.Set(session.ID, session.Clone(), ttlcache.DefaultTTL)
	return nil
}

func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	r.cache.Delete(sessionID)
	return nil
}

// Len returns the number of live sessions.
func (r *InMemoryRepo) Len() int {
	return r.cache.Len()
}

// Close stops the expiry loop.
func (r *InMemoryRepo) Close() {
	r.cache.Stop()
}
