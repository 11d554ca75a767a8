package redisrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-discord-oauth/discord"
	apperrors "github.com/jrsteele09/go-discord-oauth/internal/errors"
	"github.com/jrsteele09/go-discord-oauth/sessions"
	"github.com/jrsteele09/go-discord-oauth/sessions/redisrepo"
)

func setupStore(t *testing.T, ttl time.Duration) (*redisrepo.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisrepo.New(client, "test", ttl)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func TestStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t, time.Hour)

	expires := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	in := &sessions.Session{
		ID:           "s1",
		AccessToken:  "T1",
		RefreshToken: "R1",
		TokenType:    "Bearer",
		ExpiresAt:    expires,
		Profile:      &discord.Profile{ID: "1", Username: "alice", Discriminator: "0001"},
	}
	require.NoError(t, store.Upsert(ctx, in))
	require.True(t, mr.Exists("test:session:s1"))
	require.Equal(t, time.Hour, mr.TTL("test:session:s1"))

	out, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "R1", out.RefreshToken)
	require.True(t, expires.Equal(out.ExpiresAt))
	require.Equal(t, "alice#0001", out.Profile.Tag())

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t, time.Minute)

	require.NoError(t, store.Upsert(ctx, &sessions.Session{ID: "s1", StateNonce: "n"}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "s1")
	require.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestStore_CorruptPayload(t *testing.T) {
	ctx := context.Background()
	store, mr := setupStore(t, time.Minute)

	require.NoError(t, mr.Set("test:session:bad", "{not json"))
	_, err := store.Get(ctx, "bad")
	require.ErrorContains(t, err, "decode session")
}

func TestNewFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := redisrepo.NewFromURL(context.Background(), "redis://"+mr.Addr()+"/0", time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = redisrepo.NewFromURL(context.Background(), "://nope", time.Minute)
	require.ErrorContains(t, err, "parse redis url")
}
