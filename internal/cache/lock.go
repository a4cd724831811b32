package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrLocked is returned when the lock is already held.
var ErrLocked = errors.New("lock is already held")

// RunLockKey guards the pipeline's drop-then-insert replace.
const RunLockKey = KeyPrefix + "lock:run"

const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`

// TryLock acquires key with SET NX EX. The returned unlock releases the key
// only while it still holds this caller's token.
func TryLock(ctx context.Context, r *Redis, key string, ttl time.Duration) (unlock func(), err error) {
	token := randomToken()
	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		// Background context: the caller's may already be cancelled.
		_ = r.client.Eval(context.Background(), unlockScript, []string{key}, token).Err()
	}, nil
}

// IsLocked reports whether key is held.
func IsLocked(ctx context.Context, r *Redis, key string) bool {
	n, _ := r.client.Exists(ctx, key).Result()
	return n > 0
}

// Lock is a named Redis lock with a fixed TTL.
type Lock struct {
	r   *Redis
	key string
	ttl time.Duration
}

// NewLock returns a Lock on key. The TTL bounds how long a crashed holder
// blocks the next run.
func NewLock(r *Redis, key string, ttl time.Duration) *Lock {
	return &Lock{r: r, key: key, ttl: ttl}
}

// Held reports whether any holder currently owns the lock.
func (l *Lock) Held(ctx context.Context) bool {
	return IsLocked(ctx, l.r, l.key)
}

// TryAcquire takes the lock or returns ErrLocked.
func (l *Lock) TryAcquire(ctx context.Context) (release func(), err error) {
	return TryLock(ctx, l.r, l.key, l.ttl)
}

func randomToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
