package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// KEYS[1] = lock key
// ARGV[1] = owner token
const luaCompareAndDelete = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
  return redis.call('DEL', KEYS[1])
end
return 0
`

var ErrLockNotHeld = errors.New("lock not held")

// Locker hands out short leases so that only one instance runs a periodic job at a time.
type Locker struct {
	rdb     *redis.Client
	release *redis.Script
}

func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb, release: redis.NewScript(luaCompareAndDelete)}
}

// TryLock takes the named lease for ttl. The returned unlock func frees it only
// if it is still owned by this caller.
func (l *Locker) TryLock(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	const op = "redis.Locker.TryLock"

	key := KeyLock(name)
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		n, err := l.release.Run(ctx, l.rdb, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("%s: unlock: %w", op, err)
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}

	return unlock, true, nil
}
