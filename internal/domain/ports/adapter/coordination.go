package adapter

import (
	"context"
	"time"
)

// Locker is a best-effort distributed lock. Correctness never depends on it;
// it only avoids duplicate work.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// CodeReserver holds a payment code for ttl so it is not handed out again
// during its window plus the reuse cooldown.
type CodeReserver interface {
	Reserve(ctx context.Context, code string, ttl time.Duration) (bool, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
