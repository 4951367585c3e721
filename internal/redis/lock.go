package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkoutLockPrefix = "lock:checkout:"

// acquireScript sets the lock when free and extends it when already held by the same owner.
var acquireScript = redis.NewScript(`
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return 1
end
if redis.call("GET", KEYS[1]) == ARGV[1] then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// releaseScript deletes the lock only for its owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// LockStore handles distributed locking in Redis.
type LockStore struct {
	client *redis.Client
}

// NewLockStore creates a new LockStore.
func NewLockStore(client *redis.Client) *LockStore {
	return &LockStore{client: client}
}

// AcquireCheckoutLock attempts to acquire the payment session lock for a checkout.
// Returns true if the lock was acquired or was already held by owner.
func (s *LockStore) AcquireCheckoutLock(ctx context.Context, checkoutID, owner string, ttl time.Duration) (bool, error) {
	n, err := acquireScript.Run(ctx, s.client, []string{checkoutLockPrefix + checkoutID}, owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ReleaseCheckoutLock releases the lock for the given checkout if owner holds it.
func (s *LockStore) ReleaseCheckoutLock(ctx context.Context, checkoutID, owner string) error {
	return releaseScript.Run(ctx, s.client, []string{checkoutLockPrefix + checkoutID}, owner).Err()
}
