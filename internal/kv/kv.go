// Package kv wraps the Redis client used for every coordination hint in
// the system that is explicitly NOT authoritative state: nonces, watcher
// cursors, rate-limit counters, and double-tap confirmation gates. The
// database (internal/store), not this package, is the source of truth for
// an escrow's lifecycle.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps *redis.Client with the small set of operations this
// service needs.
type Client struct {
	rdb *redis.Client
}

func Open(addr string) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("kv: failed to connect to redis: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error { return c.rdb.Close() }

// SetIfAbsent implements security.NonceStore: an atomic SETNX with a TTL,
// returning true only if this call was the one that set the key.
func (c *Client) SetIfAbsent(key string, ttl time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := c.rdb.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("kv: setnx: %w", err)
	}
	return ok, nil
}

// GetCursor reads a watcher's persisted last-scanned-block cursor, or 0 if
// none has been recorded yet.
func (c *Client) GetCursor(ctx context.Context, key string) (int64, error) {
	val, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kv: get cursor: %w", err)
	}
	return val, nil
}

// SetCursor persists a watcher's last-scanned-block cursor.
func (c *Client) SetCursor(ctx context.Context, key string, block int64) error {
	if err := c.rdb.Set(ctx, key, block, 0).Err(); err != nil {
		return fmt.Errorf("kv: set cursor: %w", err)
	}
	return nil
}

// GetLastRescan reads the unix timestamp of a watcher's last deep rescan,
// or zero if none has run yet.
func (c *Client) GetLastRescan(ctx context.Context, key string) (int64, error) {
	val, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kv: get last rescan: %w", err)
	}
	return val, nil
}

func (c *Client) SetLastRescan(ctx context.Context, key string, unixTime int64) error {
	if err := c.rdb.Set(ctx, key, unixTime, 0).Err(); err != nil {
		return fmt.Errorf("kv: set last rescan: %w", err)
	}
	return nil
}

// IncrByFloatWithExpire increments key by delta, setting an expiry only if
// this call created the key (mirroring the original limits.py behavior of
// expiring a day/hour counter relative to its first insert, not its most
// recent one).
func (c *Client) IncrByFloatWithExpire(ctx context.Context, key string, delta float64, ttl time.Duration) (float64, error) {
	existed, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: exists: %w", err)
	}
	total, err := c.rdb.IncrByFloat(ctx, key, delta).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: incrbyfloat: %w", err)
	}
	if existed == 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("kv: expire: %w", err)
		}
	}
	return total, nil
}

// IncrWithExpire increments key by 1, setting an expiry only on first
// creation, same contract as IncrByFloatWithExpire.
func (c *Client) IncrWithExpire(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	existed, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: exists: %w", err)
	}
	total, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("kv: incr: %w", err)
	}
	if existed == 0 {
		if err := c.rdb.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("kv: expire: %w", err)
		}
	}
	return total, nil
}

// GetFloat reads a float-valued key (e.g. a day counter), returning 0 if
// absent.
func (c *Client) GetFloat(ctx context.Context, key string) (float64, error) {
	val, err := c.rdb.Get(ctx, key).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kv: get float: %w", err)
	}
	return val, nil
}

// GetInt reads an int-valued key (e.g. an hour counter), returning 0 if
// absent.
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := c.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kv: get int: %w", err)
	}
	return val, nil
}

// SetWithTTL sets an arbitrary confirmation/gate key, such as the
// double-tap "confirm release" or "confirm freeze" keys the Coordinator
// uses to require a second user action within a short window.
func (c *Client) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kv: set: %w", err)
	}
	return nil
}

// Exists reports whether key is currently set, used to check a gate key
// without consuming it.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("kv: exists: %w", err)
	}
	return n > 0, nil
}

// Delete removes key, used to consume a one-shot gate once it has served
// its purpose.
func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("kv: delete: %w", err)
	}
	return nil
}
