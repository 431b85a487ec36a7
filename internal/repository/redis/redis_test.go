package redis

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/cineseat/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient connects to CINESEAT_TEST_REDIS_ADDR or skips.
func testClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := os.Getenv("CINESEAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CINESEAT_TEST_REDIS_ADDR not set")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, rdb.Ping(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })

	return rdb
}

func TestCache_GetOrSetJSON_LoadsOnce(t *testing.T) {
	c := NewCache(testClient(t))
	ctx := context.Background()
	key := "cineseat:test:" + uuid.NewString()
	t.Cleanup(func() { _ = c.Del(ctx, key) })

	var loads atomic.Int32
	loader := func(context.Context) ([]int, error) {
		loads.Add(1)
		return []int{1, 2, 3}, nil
	}

	for range 3 {
		v, err := GetOrSetJSON(ctx, c, key, time.Minute, loader)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, v)
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestCache_InvalidateShowtime(t *testing.T) {
	c := NewCache(testClient(t))
	ctx := context.Background()
	showtimeID := time.Now().UnixNano()

	require.NoError(t, c.SetString(ctx, KeyShowtimeAvailability(showtimeID), "x", time.Minute))
	require.NoError(t, c.SetString(ctx, KeyShowtimeSeatMap(showtimeID, true, 50, 0), "x", time.Minute))
	require.NoError(t, c.SetString(ctx, KeyShowtimeSeatMap(showtimeID, false, 50, 50), "x", time.Minute))

	require.NoError(t, c.InvalidateShowtime(ctx, showtimeID))

	for _, k := range []string{
		KeyShowtimeAvailability(showtimeID),
		KeyShowtimeSeatMap(showtimeID, true, 50, 0),
		KeyShowtimeSeatMap(showtimeID, false, 50, 50),
	} {
		_, ok, err := c.GetString(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}
}

func TestLocker_TryLock(t *testing.T) {
	l := NewLocker(testClient(t))
	ctx := context.Background()
	name := "test-" + uuid.NewString()

	unlock, ok, err := l.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, unlock(ctx))
	assert.ErrorIs(t, unlock(ctx), ErrLockNotHeld)

	unlock2, ok, err := l.TryLock(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, unlock2(ctx))
}

func TestIdempotencyStore(t *testing.T) {
	s := NewIdempotencyStore(testClient(t), time.Minute)
	ctx := context.Background()
	key := KeyIdempotency("test", uuid.NewString())
	t.Cleanup(func() { _ = s.Release(ctx, key) })

	ok, err := s.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// in flight: locked but no result yet
	_, ok, err = s.GetResult(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SaveResult(ctx, key, []byte(`{"ok":true}`)))
	res, ok, err := s.GetResult(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"ok":true}`, string(res))

	ok, err = s.AcquireLock(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSlidingWindowLimiter(t *testing.T) {
	l := NewSlidingWindowLimiter(testClient(t), "test-"+uuid.NewString(), 2, time.Minute)
	ctx := context.Background()

	for i := range 2 {
		ok, n, _, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, int64(i+1), n)
	}

	ok, _, retry, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Positive(t, retry)
}

func TestSeatsPubSub_RelaysShowtimeChanges(t *testing.T) {
	rdb := testClient(t)
	p := NewSeatsPubSub(rdb)
	showtimeID := time.Now().UnixNano()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan SeatChange, 1)
	go func() {
		_ = p.Subscribe(ctx, showtimeID, func(_ context.Context, c SeatChange) {
			got <- c
		})
	}()

	e := events.New(events.BookingCreated, showtimeID, time.Now())
	e.SeatIDs = []int64{1, 2}

	// The subscription is asynchronous; publish until it is observed.
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case c := <-got:
			assert.Equal(t, events.BookingCreated, c.Type)
			assert.Equal(t, []int64{1, 2}, c.SeatIDs)
			return
		case <-tick.C:
			require.NoError(t, p.Publish(ctx, e))
		case <-ctx.Done():
			t.Fatal("no change received")
		}
	}
}
