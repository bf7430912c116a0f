// internal/match/queue.go
package match

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/models"
)

// DefaultQueueKey is the Redis list the matchmaking queue lives in.
const DefaultQueueKey = "matchingPlayers"

// Queue is the FIFO waiting line of players looking for a public match.
// Enqueue is idempotent on user id. All implementations must be safe for
// concurrent use; the redis one is additionally shared across processes.
type Queue interface {
	Enqueue(ctx context.Context, p models.MatchingPlayer) (bool, error)
	PushFront(ctx context.Context, players ...models.MatchingPlayer) error
	TakeBatch(ctx context.Context, n int) ([]models.MatchingPlayer, error)
	List(ctx context.Context) ([]models.MatchingPlayer, error)
	Remove(ctx context.Context, userID uuid.UUID) (bool, error)
	Contains(ctx context.Context, userID uuid.UUID) (bool, error)
	Len(ctx context.Context) (int, error)
}

// RedisQueue stores the queue as a list of JSON-encoded MatchingPlayer
// entries. Duplicate suppression scans the list, which is fine at queue
// lengths matchmaking actually sees.
type RedisQueue struct {
	rdb *redis.Client
	key string
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, p models.MatchingPlayer) (bool, error) {
	present, err := q.Contains(ctx, p.UserID)
	if err != nil || present {
		return false, err
	}
	data, err := json.Marshal(p)
	if err != nil {
		return false, fmt.Errorf("marshal matching player: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.key, data).Err(); err != nil {
		return false, fmt.Errorf("enqueue: %w", err)
	}
	return true, nil
}

// PushFront puts players back at the head of the line, preserving their
// relative order.
func (q *RedisQueue) PushFront(ctx context.Context, players ...models.MatchingPlayer) error {
	for i := len(players) - 1; i >= 0; i-- {
		data, err := json.Marshal(players[i])
		if err != nil {
			return fmt.Errorf("marshal matching player: %w", err)
		}
		if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
			return fmt.Errorf("push front: %w", err)
		}
	}
	return nil
}

func (q *RedisQueue) TakeBatch(ctx context.Context, n int) ([]models.MatchingPlayer, error) {
	var out []models.MatchingPlayer
	for len(out) < n {
		raw, err := q.rdb.LPop(ctx, q.key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return out, fmt.Errorf("take batch: %w", err)
		}
		var p models.MatchingPlayer
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logrus.Warnf("matchmaking queue: dropping unreadable entry: %v", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// List returns the waiting players in queue order. Unreadable entries are
// skipped, same as TakeBatch.
func (q *RedisQueue) List(ctx context.Context) ([]models.MatchingPlayer, error) {
	entries, err := q.rdb.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	out := make([]models.MatchingPlayer, 0, len(entries))
	for _, raw := range entries {
		var p models.MatchingPlayer
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (q *RedisQueue) Remove(ctx context.Context, userID uuid.UUID) (bool, error) {
	entries, err := q.rdb.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("remove from queue: %w", err)
	}
	for _, raw := range entries {
		var p models.MatchingPlayer
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		if p.UserID == userID {
			n, err := q.rdb.LRem(ctx, q.key, 1, raw).Result()
			if err != nil {
				return false, fmt.Errorf("remove from queue: %w", err)
			}
			return n > 0, nil
		}
	}
	return false, nil
}

func (q *RedisQueue) Contains(ctx context.Context, userID uuid.UUID) (bool, error) {
	entries, err := q.rdb.LRange(ctx, q.key, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("scan queue: %w", err)
	}
	for _, raw := range entries {
		var p models.MatchingPlayer
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (q *RedisQueue) Len(ctx context.Context) (int, error) {
	n, err := q.rdb.LLen(ctx, q.key).Result()
	return int(n), err
}

// MemQueue is the in-process Queue used by tests.
type MemQueue struct {
	mu      sync.Mutex
	players []models.MatchingPlayer
}

func NewMemQueue() *MemQueue {
	return &MemQueue{}
}

func (q *MemQueue) Enqueue(ctx context.Context, p models.MatchingPlayer) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.players {
		if e.UserID == p.UserID {
			return false, nil
		}
	}
	q.players = append(q.players, p)
	return true, nil
}

func (q *MemQueue) PushFront(ctx context.Context, players ...models.MatchingPlayer) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.players = append(append([]models.MatchingPlayer{}, players...), q.players...)
	return nil
}

func (q *MemQueue) TakeBatch(ctx context.Context, n int) ([]models.MatchingPlayer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.players) {
		n = len(q.players)
	}
	out := append([]models.MatchingPlayer{}, q.players[:n]...)
	q.players = q.players[n:]
	return out, nil
}

func (q *MemQueue) List(ctx context.Context) ([]models.MatchingPlayer, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.MatchingPlayer{}, q.players...), nil
}

func (q *MemQueue) Remove(ctx context.Context, userID uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.players {
		if e.UserID == userID {
			q.players = append(q.players[:i], q.players[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (q *MemQueue) Contains(ctx context.Context, userID uuid.UUID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.players {
		if e.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (q *MemQueue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.players), nil
}
