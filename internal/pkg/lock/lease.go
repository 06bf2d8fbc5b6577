package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

// Leaser grants time-bounded ownership of keys stored in Redis.
type Leaser struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewLeaser creates a Leaser. Keys are stored as prefix+key.
func NewLeaser(client redis.UniversalClient, prefix string, ttl time.Duration) *Leaser {
	return &Leaser{client: client, prefix: prefix, ttl: ttl}
}

// TTL returns the lease duration.
func (l *Leaser) TTL() time.Duration {
	return l.ttl
}

// Lease is a held key. It must be refreshed before TTL elapses.
type Lease struct {
	leaser *Leaser
	key    string
	owner  string
}

// Acquire takes the lease for key or returns ErrLeaseHeld.
func (l *Leaser) Acquire(ctx context.Context, key string) (*Lease, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lease: %w", err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}
	return &Lease{leaser: l, key: l.prefix + key, owner: owner}, nil
}

// Refresh extends the lease by the leaser TTL.
func (le *Lease) Refresh(ctx context.Context) error {
	n, err := refreshScript.Run(ctx, le.leaser.client, []string{le.key}, le.owner, le.leaser.ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to refresh lease: %w", err)
	}
	if n == 0 {
		return ErrLeaseLost
	}
	return nil
}

// Release gives the lease up if it is still owned.
func (le *Lease) Release(ctx context.Context) error {
	if _, err := releaseScript.Run(ctx, le.leaser.client, []string{le.key}, le.owner).Int64(); err != nil {
		return fmt.Errorf("failed to release lease: %w", err)
	}
	return nil
}
