package lock

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalAcquireRelease(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	release, err := l.Acquire(ctx, "account:1", time.Minute)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "account:1", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired)

	_, err = l.Acquire(ctx, "account:2", time.Minute)
	assert.NoError(t, err, "different keys do not contend")

	require.NoError(t, release(ctx))

	_, err = l.Acquire(ctx, "account:1", time.Minute)
	assert.NoError(t, err)
}

func TestLocalExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocal()
	l.clock = func() time.Time { return now }

	staleRelease, err := l.Acquire(ctx, "daily-job", time.Minute)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = l.Acquire(ctx, "daily-job", time.Minute)
	require.NoError(t, err, "expired lock can be taken over")

	require.NoError(t, staleRelease(ctx))
	_, err = l.Acquire(ctx, "daily-job", time.Minute)
	assert.ErrorIs(t, err, ErrNotAcquired, "stale release must not free the new holder's lock")
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis lock test")
	}

	ctx := context.Background()
	r, err := NewRedis(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer r.Close()

	key := "test:" + newToken()
	release, err := r.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)

	_, err = r.Acquire(ctx, key, 10*time.Second)
	assert.ErrorIs(t, err, ErrNotAcquired)

	require.NoError(t, release(ctx))

	release, err = r.Acquire(ctx, key, 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
