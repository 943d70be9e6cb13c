package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	l, err := NewRedisLocker("redis://"+s.Addr(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, s
}

func shortCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	t.Cleanup(cancel)
	return ctx
}

// lockers runs fn against both implementations.
func lockers(t *testing.T, fn func(t *testing.T, l Locker)) {
	t.Run("local", func(t *testing.T) { fn(t, NewLocalLocker()) })
	t.Run("redis", func(t *testing.T) {
		l, _ := setupTestRedis(t)
		fn(t, l)
	})
}

func TestLocker_SecondHolderTimesOut(t *testing.T) {
	lockers(t, func(t *testing.T, l Locker) {
		unlock, err := l.Lock(context.Background(), "trip-1")
		require.NoError(t, err)
		defer func() { _ = unlock(context.Background()) }()

		_, err = l.Lock(shortCtx(t), "trip-1")

		assert.ErrorIs(t, err, ErrNotAcquired)
	})
}

func TestLocker_UnlockFreesKey(t *testing.T) {
	lockers(t, func(t *testing.T, l Locker) {
		unlock, err := l.Lock(context.Background(), "trip-1")
		require.NoError(t, err)
		require.NoError(t, unlock(context.Background()))
		require.NoError(t, unlock(context.Background()), "second unlock is a no-op")

		again, err := l.Lock(shortCtx(t), "trip-1")

		require.NoError(t, err)
		assert.NoError(t, again(context.Background()))
	})
}

func TestLocker_KeysAreIndependent(t *testing.T) {
	lockers(t, func(t *testing.T, l Locker) {
		a, err := l.Lock(context.Background(), "trip-a")
		require.NoError(t, err)
		defer func() { _ = a(context.Background()) }()

		b, err := l.Lock(shortCtx(t), "trip-b")

		require.NoError(t, err)
		assert.NoError(t, b(context.Background()))
	})
}

func TestLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	lockers(t, func(t *testing.T, l Locker) {
		unlock, err := l.Lock(context.Background(), "trip-1")
		require.NoError(t, err)

		acquired := make(chan error, 1)
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			u, err := l.Lock(ctx, "trip-1")
			if err == nil {
				_ = u(context.Background())
			}
			acquired <- err
		}()

		time.Sleep(20 * time.Millisecond)
		require.NoError(t, unlock(context.Background()))

		assert.NoError(t, <-acquired)
	})
}

func TestLocker_MutualExclusion(t *testing.T) {
	lockers(t, func(t *testing.T, l Locker) {
		var (
			inside  atomic.Int32
			maxSeen atomic.Int32
			wg      sync.WaitGroup
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				unlock, err := l.Lock(ctx, "trip-1")
				if !assert.NoError(t, err) {
					return
				}
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				_ = unlock(context.Background())
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), maxSeen.Load())
	})
}

func TestLocalLocker_ForgetsIdleKeys(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "trip-1")
	require.NoError(t, err)
	_, err = l.Lock(shortCtx(t), "trip-1")
	require.ErrorIs(t, err, ErrNotAcquired)
	require.NoError(t, unlock(context.Background()))

	assert.Equal(t, 0, l.held())
}

func TestRedisLocker_LockExpires(t *testing.T) {
	l, s := setupTestRedis(t)

	_, err := l.Lock(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.True(t, s.Exists("trip-lock:trip-1"))

	s.FastForward(2 * time.Second)

	unlock, err := l.Lock(shortCtx(t), "trip-1")
	require.NoError(t, err, "expired lock can be taken again")
	assert.NoError(t, unlock(context.Background()))
}

func TestRedisLocker_StaleUnlockLeavesNewHolder(t *testing.T) {
	l, s := setupTestRedis(t)

	stale, err := l.Lock(context.Background(), "trip-1")
	require.NoError(t, err)
	s.FastForward(2 * time.Second)

	current, err := l.Lock(shortCtx(t), "trip-1")
	require.NoError(t, err)

	require.NoError(t, stale(context.Background()))
	assert.True(t, s.Exists("trip-lock:trip-1"), "stale unlock must not release someone else's lock")

	require.NoError(t, current(context.Background()))
	assert.False(t, s.Exists("trip-lock:trip-1"))
}

func TestNewRedisLocker_BadURL(t *testing.T) {
	_, err := NewRedisLocker("not-a-url", time.Second)

	assert.Error(t, err)
}
