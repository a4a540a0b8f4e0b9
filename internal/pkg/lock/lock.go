package lock

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var ErrNotAcquired = errors.New("lock is held by another request")

// 只删除自己持有的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived Redis locks.
type Locker struct {
	rdb    *redis.Client
	prefix string
}

func NewLocker(rdb *redis.Client, prefix string) *Locker {
	return &Locker{rdb: rdb, prefix: prefix}
}

// Acquire takes the lock on key for ttl. The returned release func is safe
// to call after the lock has expired.
func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		releaseScript.Run(ctx, l.rdb, []string{fullKey}, token)
	}, nil
}
