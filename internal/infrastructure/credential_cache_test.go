package infrastructure

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"growthdash/internal/domain"
	"growthdash/pkg/logger"
)

type countingCredentialStore struct {
	calls  int
	status domain.CredentialStatus
	err    error
}

func (s *countingCredentialStore) CredentialStatus(ctx context.Context, platform string) (*domain.CredentialStatus, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	status := s.status
	status.Platform = platform
	return &status, nil
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestCachedCredentialStore_MissThenHit(t *testing.T) {
	mr, client := setupTestRedis(t)
	_, _, m := testDeps(t)
	synced := time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	next := &countingCredentialStore{status: domain.CredentialStatus{Connected: true, LastSyncAt: &synced}}

	cache := NewCachedCredentialStore(next, client, time.Minute, logger.Discard(), m)

	first, err := cache.CredentialStatus(context.Background(), "Meta")
	require.NoError(t, err)
	second, err := cache.CredentialStatus(context.Background(), "meta")
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, "meta", second.Platform)
	assert.True(t, second.Connected)
	require.NotNil(t, second.LastSyncAt)
	assert.True(t, first.LastSyncAt.Equal(*second.LastSyncAt))
	assert.True(t, mr.Exists(credentialKeyPrefix+"meta"))
}

func TestCachedCredentialStore_Expiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	_, _, m := testDeps(t)
	next := &countingCredentialStore{}

	cache := NewCachedCredentialStore(next, client, time.Minute, logger.Discard(), m)

	_, err := cache.CredentialStatus(context.Background(), "google")
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = cache.CredentialStatus(context.Background(), "google")
	require.NoError(t, err)

	assert.Equal(t, 2, next.calls)
}

func TestCachedCredentialStore_RedisDownFallsThrough(t *testing.T) {
	mr, client := setupTestRedis(t)
	_, _, m := testDeps(t)
	next := &countingCredentialStore{status: domain.CredentialStatus{Connected: true}}
	mr.Close()

	cache := NewCachedCredentialStore(next, client, time.Minute, logger.Discard(), m)

	status, err := cache.CredentialStatus(context.Background(), "meta")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Equal(t, 1, next.calls)
}

func TestCachedCredentialStore_StoreErrorNotCached(t *testing.T) {
	mr, client := setupTestRedis(t)
	_, _, m := testDeps(t)
	next := &countingCredentialStore{err: errors.New("store down")}

	cache := NewCachedCredentialStore(next, client, time.Minute, logger.Discard(), m)

	_, err := cache.CredentialStatus(context.Background(), "meta")
	require.Error(t, err)
	assert.False(t, mr.Exists(credentialKeyPrefix+"meta"))
}
