// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/harborfun/fisharena/internal/config"
)

// DefaultRecordQueue is the Redis list the recorder service consumes
// finished-game records from.
const DefaultRecordQueue = "fisharena_records"

// releaseScript deletes a lock key only when the caller still owns it, so an
// expired lock that another actor re-acquired is never released by us.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`

// Cache wraps the Redis client used for cross-process coordination: the
// distributed lock, the matchmaking queue list, heartbeat hashes, and the
// write-behind record queue.
type Cache struct {
	rdb *redis.Client
}

// Connect initializes a client from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
func Connect() (*Cache, error) {
	addr := config.GetEnv("REDIS_ADDR", "localhost:6379")
	dbIdx, _ := strconv.Atoi(config.GetEnv("REDIS_DB", "0"))

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Cache{rdb: rdb}, nil
}

// NewWithClient wraps an existing client. Used by tests and the recorder.
func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Client exposes the underlying go-redis client for callers that need list
// or blocking primitives the wrapper does not cover.
func (c *Cache) Client() *redis.Client {
	return c.rdb
}

func (c *Cache) Set(ctx context.Context, key, value string) error {
	return c.rdb.Set(ctx, key, value, 0).Err()
}

func (c *Cache) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get returns the value for key, or "" if the key does not exist.
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n == 1, err
}

func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.rdb.Expire(ctx, key, ttl).Err()
}

func (c *Cache) HSet(ctx context.Context, key string, fields map[string]string) error {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return c.rdb.HSet(ctx, key, args...).Err()
}

func (c *Cache) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, key).Result()
}

func (c *Cache) LPush(ctx context.Context, key, value string) error {
	return c.rdb.LPush(ctx, key, value).Err()
}

func (c *Cache) RPush(ctx context.Context, key, value string) error {
	return c.rdb.RPush(ctx, key, value).Err()
}

func (c *Cache) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return c.rdb.LRange(ctx, key, start, stop).Result()
}

// AcquireLock takes the lock at key for owner with the given TTL. Returns
// false without error when the lock is held by someone else.
func (c *Cache) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, owner, ttl).Result()
}

// ReleaseLock releases the lock at key if owner still holds it. Returns
// whether the lock was actually released.
func (c *Cache) ReleaseLock(ctx context.Context, key, owner string) (bool, error) {
	res, err := c.rdb.Eval(ctx, releaseScript, []string{key}, owner).Result()
	if err != nil {
		return false, err
	}
	n, ok := res.(int64)
	return ok && n == 1, nil
}

// PublishRecord serializes record to JSON and pushes it onto the record
// queue for the recorder service. A quick network send, nothing more.
func (c *Cache) PublishRecord(ctx context.Context, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal game record: %w", err)
	}
	queue := config.GetEnv("RECORD_QUEUE_NAME", DefaultRecordQueue)
	if err := c.rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list %q: %w", queue, err)
	}
	return nil
}
