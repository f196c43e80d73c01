package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/neferdidi/boba-backend/pkg/config"
	"github.com/redis/go-redis/v9"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for i, want := range []bool{true, true, false} {
		allowed, count, err := client.FixedWindowAllow(ctx, "orders:ip", 2, 1500*time.Millisecond)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		if allowed != want || count != int64(i+1) {
			t.Fatalf("call %d: allowed=%v count=%d", i, allowed, count)
		}
	}

	key := "boba:rate_limit:orders:ip"
	if len(mock.windowStarts) != 1 || mock.windowStarts[0] != (windowStart{key: key, ms: 1500}) {
		t.Fatalf("expected one window start for %s, got %v", key, mock.windowStarts)
	}

	if _, _, err := client.FixedWindowAllow(ctx, "orders:ip", 2, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.CacheKey("discount_rules", "active")
	if err := client.Set(ctx, key, `[{"id":1}]`, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != `[{"id":1}]` {
		t.Fatalf("unexpected cached value %q", value)
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.CacheKey("discount_rules", "active"); got != "boba:cache:discount_rules:active" {
		t.Fatalf("unexpected cache key %s", got)
	}
	if got := client.LockKey("ordering-window"); got != "boba:lock:ordering-window" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.RateLimitKey("orders"); got != "boba:rate_limit:orders" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.IdempotencyKey("POST|/api/user/orders", "abc"); got != "boba:idempotency:POST|/api/user/orders:abc" {
		t.Fatalf("unexpected idempotency key %q", got)
	}
	if got := client.CacheKey("", "x"); got != "boba:cache:x" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestKeysUseConfiguredNamespace(t *testing.T) {
	client := &Client{namespace: "boba-staging"}
	if got := client.LockKey("cron"); got != "boba-staging:lock:cron" {
		t.Fatalf("unexpected namespaced key %s", got)
	}
}

func TestCompareAndDeleteOnlyRemovesMatchingValue(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	mock.data["boba:lock:cron"] = "owner-a"

	removed, err := client.CompareAndDelete(ctx, "boba:lock:cron", "owner-b")
	if err != nil || removed {
		t.Fatalf("foreign owner must not delete: removed=%v err=%v", removed, err)
	}
	removed, err = client.CompareAndDelete(ctx, "boba:lock:cron", "owner-a")
	if err != nil || !removed {
		t.Fatalf("owner delete failed: removed=%v err=%v", removed, err)
	}
	if _, ok := mock.data["boba:lock:cron"]; ok {
		t.Fatalf("lock key still present")
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from uninitialized client")
	}
	if _, _, err := client.FixedWindowAllow(context.Background(), "x", 1, time.Second); err != errNotInitialized {
		t.Fatalf("expected errNotInitialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without raw client should be a no-op, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@cache.internal:6380/3",
		DB:          1,
		PoolSize:    20,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache.internal:6380" || opts.Password != "secret" {
		t.Fatalf("url not applied: %+v", opts)
	}
	if opts.DB != 3 {
		t.Fatalf("db from url should win, got %d", opts.DB)
	}
	if opts.PoolSize != 20 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("config should fill unset options, got pool=%d dial=%s", opts.PoolSize, opts.DialTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2})
	if err != nil || opts.Addr != "localhost:6379" || opts.DB != 2 {
		t.Fatalf("address config not applied: %+v err=%v", opts, err)
	}
}

type mockCmdable struct {
	data         map[string]string
	counters     map[string]int64
	windowStarts []windowStart
}

type windowStart struct {
	key string
	ms  int64
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:     make(map[string]string),
		counters: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

// Eval emulates the two scripts the client sends.
func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch script {
	case fixedWindowScript:
		m.counters[key]++
		if m.counters[key] == 1 {
			m.windowStarts = append(m.windowStarts, windowStart{key: key, ms: args[0].(int64)})
		}
		return redis.NewCmdResult(m.counters[key], nil)
	case compareAndDeleteScript:
		if v, ok := m.data[key]; ok && v == fmt.Sprint(args[0]) {
			delete(m.data, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
