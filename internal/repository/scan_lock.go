package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ScanLock is a best-effort distributed mutex around monitor scans.
type ScanLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewScanLock builds a lock on key that auto-expires after ttl.
func NewScanLock(client *redis.Client, key string, ttl time.Duration) *ScanLock {
	return &ScanLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock and returns its release function. ok is false when
// another instance holds it.
func (l *ScanLock) Acquire(ctx context.Context) (release func(context.Context), ok bool, err error) {
	token := uuid.NewString()
	ok, err = l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return func(ctx context.Context) {
		// Only delete the key if it still carries our token.
		_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
	}, true, nil
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0`)
