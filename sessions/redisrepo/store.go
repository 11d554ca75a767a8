// Package redisrepo stores sessions in Redis so several service instances can share them.
package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/jrsteele09/go-discord-oauth/internal/errors"
	"github.com/jrsteele09/go-discord-oauth/sessions"
)

const defaultPrefix = "discord-oauth"

// Store implements sessions.Repo backed by Redis. Each session is one JSON value whose
// expiry is reset on every Upsert.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ sessions.Repo = (*Store)(nil)

// New constructs a Redis-backed session store.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

// NewFromURL parses a redis:// URL and checks connectivity.
func NewFromURL(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, defaultPrefix, ttl), nil
}

func (s *Store) key(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, sessionID)
}

// Get loads and decodes the session.
func (s *Store) Get(ctx context.Context, sessionID string) (*sessions.Session, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID is required")
	}
	payload, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	var session sessions.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

// Upsert stores the encoded session with the store TTL.
func (s *Store) Upsert(ctx context.Context, session *sessions.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if session.ID == "" {
		return fmt.Errorf("sessionID is required")
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(session.ID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Delete removes the session key.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID is required")
	}
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Close releases the Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
