//go:build !integration

package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

// memClient is a tiny in-process RedisClient with TTLs.
type memClient struct {
	mu      sync.Mutex
	vals    map[string]string
	expires map[string]time.Time
	now     func() time.Time
}

func newMemClient() *memClient {
	return &memClient{vals: map[string]string{}, expires: map[string]time.Time{}, now: time.Now}
}

func (m *memClient) gc(key string) {
	if exp, ok := m.expires[key]; ok && !m.now().Before(exp) {
		delete(m.vals, key)
		delete(m.expires, key)
	}
}

func (m *memClient) Ping(ctx context.Context) error { return nil }

func (m *memClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = toString(value)
	if expiration > 0 {
		m.expires[key] = m.now().Add(expiration)
	}
	return nil
}

func (m *memClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gc(key)
	if _, ok := m.vals[key]; ok {
		return false, nil
	}
	m.vals[key] = toString(value)
	if expiration > 0 {
		m.expires[key] = m.now().Add(expiration)
	}
	return true, nil
}

func (m *memClient) Get(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gc(key)
	v, ok := m.vals[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memClient) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gc(key)
	n := int64(0)
	if v, ok := m.vals[key]; ok {
		for _, c := range v {
			n = n*10 + int64(c-'0')
		}
	}
	n++
	m.vals[key] = toString(n)
	return n, nil
}

func (m *memClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = m.now().Add(expiration)
	return nil
}

func (m *memClient) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.vals, k)
		delete(m.expires, k)
	}
	return nil
}

func (m *memClient) Close() error { return nil }

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return itoa(t)
	}
	return "1"
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	clock := time.Now()
	cli.now = func() time.Time { return clock }
	rl := NewRateLimiter(cli)
	key := SubjectActionKey("subject-1", "create_payment")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("call %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, key, 3, time.Minute); ok {
		t.Fatal("4th call inside the window should be rejected")
	}

	clock = clock.Add(time.Minute)
	if ok, _ := rl.Allow(ctx, key, 3, time.Minute); !ok {
		t.Fatal("a new window should allow again")
	}
}

func TestCodeReserver(t *testing.T) {
	ctx := context.Background()
	cli := newMemClient()
	clock := time.Now()
	cli.now = func() time.Time { return clock }
	r := NewCodeReserver(cli)

	ok, err := r.Reserve(ctx, "CBABCD2345", time.Hour)
	if err != nil || !ok {
		t.Fatalf("first reserve: ok=%v err=%v", ok, err)
	}
	if ok, _ := r.Reserve(ctx, "CBABCD2345", time.Hour); ok {
		t.Fatal("code reserved twice inside its cooldown")
	}
	if ok, _ := r.Reserve(ctx, "CBWXYZ6789", time.Hour); !ok {
		t.Fatal("a different code should be free")
	}

	clock = clock.Add(time.Hour)
	if ok, _ := r.Reserve(ctx, "CBABCD2345", time.Hour); !ok {
		t.Fatal("code should be reusable after the cooldown")
	}
}
