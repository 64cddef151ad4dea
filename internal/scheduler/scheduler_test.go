package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestLockerIsExclusive(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewLocker(rdb, time.Minute)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists("k"))

	_, ok, err = l.TryLock(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	release()
	assert.False(t, mr.Exists("k"))
	_, ok, err = l.TryLock(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerExpiresAndKeepsForeignLock(t *testing.T) {
	mr, rdb := newRedis(t)
	l := NewLocker(rdb, time.Minute)
	ctx := context.Background()

	release, ok, err := l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = l.TryLock(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	// the first holder's release must not drop the second holder's lock
	release()
	assert.True(t, mr.Exists("k"))
}

func TestLockerWithoutRedis(t *testing.T) {
	l := NewLocker(nil, 0)
	for i := 0; i < 2; i++ {
		release, ok, err := l.TryLock(context.Background(), "k")
		require.NoError(t, err)
		assert.True(t, ok)
		release()
	}
}

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	mr, rdb := newRedis(t)
	s := New(rdb, time.Minute, zap.NewNop())
	ctx := context.Background()

	calls := 0
	job := func(context.Context) error { calls++; return nil }

	ran, err := s.RunOnce(ctx, "reminders", job)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(lockPrefix+"reminders"))

	require.NoError(t, mr.Set(lockPrefix+"reminders", "other-instance"))
	ran, err = s.RunOnce(ctx, "reminders", job)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1, calls)
}

func TestRunOnceReturnsJobError(t *testing.T) {
	s := New(nil, time.Minute, zap.NewNop())
	boom := errors.New("boom")

	ran, err := s.RunOnce(context.Background(), "x", func(context.Context) error { return boom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
}

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(nil, time.Minute, zap.NewNop())
	assert.Error(t, s.Add("not a spec", "x", func(context.Context) error { return nil }))
	require.NoError(t, s.Add("0 8 * * *", "x", func(context.Context) error { return nil }))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
