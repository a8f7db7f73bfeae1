package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkScript performs the fixed-window admission step server-side so the
// whole read-check-increment sequence is one atomic operation.
//
// KEYS[1]: counter key
// ARGV[1]: limit (max admitted requests per window)
// ARGV[2]: window length in milliseconds
//
// Returns {allowed(0|1), count, remaining_ms}. The counter's TTL is the
// window: the key expiring IS the window reset, so an idle identifier costs
// nothing after its window ends.
var checkScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[1])
local window_ms = tonumber(ARGV[2])

local count = tonumber(redis.call('GET', key) or '0')

if count >= limit then
    local ttl = redis.call('PTTL', key)
    if ttl > 0 then
        return {0, count, ttl}
    end
    -- Counter with no expiry left over; drop it and start a fresh window.
    redis.call('DEL', key)
    count = 0
end

local new_count = redis.call('INCR', key)
if new_count == 1 then
    redis.call('PEXPIRE', key, window_ms)
end

local ttl = redis.call('PTTL', key)
if ttl < 0 then
    redis.call('PEXPIRE', key, window_ms)
    ttl = window_ms
end

return {1, new_count, ttl}
`)

// RedisBackend implements Backend on shared Redis counters, giving multiple
// gate instances one consistent view of each identifier's window.
//
// Each check is a single Lua script round trip; Redis executes scripts
// serially, so per-key atomicity holds across instances. Window reset is
// delegated to key TTL and Sweep is therefore a no-op.
//
// Calls run under a bounded timeout. Callers treat any error, including a
// deadline, as backend unavailability and decide admission themselves; this
// backend never makes that call.
type RedisBackend struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	// Client is the Redis client to use. Required.
	Client redis.UniversalClient

	// Prefix namespaces this limiter's keys.
	// Default: "turnstile:"
	Prefix string

	// Timeout bounds each Redis call.
	// Default: 150ms
	Timeout time.Duration
}

// NewRedisBackend creates a Redis-backed entry store.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "turnstile:"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 150 * time.Millisecond
	}

	return &RedisBackend{
		client:  cfg.Client,
		prefix:  cfg.Prefix,
		timeout: cfg.Timeout,
	}, nil
}

// CheckAndIncrement performs one atomic fixed-window admission step for key.
func (r *RedisBackend) CheckAndIncrement(ctx context.Context, key string, limit int, window time.Duration) (Outcome, error) {
	if key == "" {
		return Outcome{}, fmt.Errorf("key cannot be empty")
	}
	if limit <= 0 {
		return Outcome{}, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if window <= 0 {
		return Outcome{}, fmt.Errorf("window must be positive, got %v", window)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := checkScript.Run(ctx, r.client, []string{r.prefix + key},
		limit,
		window.Milliseconds(),
	).Result()
	if err != nil {
		return Outcome{}, fmt.Errorf("redis check failed for key %q: %w", key, err)
	}

	values, ok := res.([]interface{})
	if !ok || len(values) != 3 {
		return Outcome{}, fmt.Errorf("unexpected script result %T", res)
	}

	allowed, ok0 := values[0].(int64)
	count, ok1 := values[1].(int64)
	remainingMS, ok2 := values[2].(int64)
	if !ok0 || !ok1 || !ok2 {
		return Outcome{}, fmt.Errorf("unexpected script result values %v", values)
	}

	resetAfter := time.Duration(remainingMS) * time.Millisecond
	if resetAfter <= 0 {
		resetAfter = window
	}

	return Outcome{
		Allowed:    allowed == 1,
		Count:      count,
		ResetAfter: resetAfter,
	}, nil
}

// Sweep is a no-op: key TTLs expire idle entries.
func (r *RedisBackend) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

// Ping reports whether Redis is reachable.
func (r *RedisBackend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
