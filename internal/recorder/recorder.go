// Package recorder drains finished-game records from the Redis queue the
// game server publishes to and persists them to PostgreSQL. Running it as a
// separate process keeps the hot game-end path free of database latency.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/cache"
	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/models"
)

// InsertFunc persists one record. database.InsertGameRecord in production;
// swapped in tests. Inserts are idempotent on record id, so a crashed flush
// can safely be replayed.
type InsertFunc func(ctx context.Context, rec *models.GameRecord) error

// Service accumulates popped records and flushes them in small batches.
type Service struct {
	rdb        *redis.Client
	queue      string
	batchSize  int
	flushDelay time.Duration
	insert     InsertFunc

	mu    sync.Mutex
	batch []*models.GameRecord
}

// New builds a recorder from environment settings:
//   - RECORD_QUEUE_NAME (default "fisharena_records")
//   - RECORDER_BATCH_SIZE (default 20)
//   - RECORDER_FLUSH_MS (default 500)
func New(rdb *redis.Client, insert InsertFunc) *Service {
	batchSize := envInt("RECORDER_BATCH_SIZE", 20)
	flushMs := envInt("RECORDER_FLUSH_MS", 500)
	return &Service{
		rdb:        rdb,
		queue:      config.GetEnv("RECORD_QUEUE_NAME", cache.DefaultRecordQueue),
		batchSize:  batchSize,
		flushDelay: time.Duration(flushMs) * time.Millisecond,
		insert:     insert,
		batch:      make([]*models.GameRecord, 0, batchSize),
	}
}

func envInt(key string, def int) int {
	raw := config.GetEnv(key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

// Run pops records until ctx is canceled, flushing on a timer and whenever
// the batch fills. Pending records are flushed once more on the way out.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.flushDelay)
	defer ticker.Stop()
	logrus.Infof("recorder consuming queue %q (batch=%d flush=%s)", s.queue, s.batchSize, s.flushDelay)

	for {
		select {
		case <-ctx.Done():
			s.Flush(context.Background())
			logrus.Info("recorder stopped")
			return
		case <-ticker.C:
			s.Flush(ctx)
		default:
			// BLPop with a short timeout so shutdown is picked up promptly
			res, err := s.rdb.BLPop(ctx, 3*time.Second, s.queue).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) || ctx.Err() != nil {
					continue
				}
				logrus.Errorf("recorder: BLPop: %v", err)
				time.Sleep(time.Second)
				continue
			}
			if len(res) < 2 {
				continue
			}
			s.Enqueue(res[1])
		}
	}
}

// Enqueue decodes one payload into the pending batch. Unreadable payloads
// are logged and dropped rather than wedging the queue.
func (s *Service) Enqueue(payload string) {
	var rec models.GameRecord
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		logrus.Warnf("recorder: dropping undecodable record: %v", err)
		return
	}

	s.mu.Lock()
	s.batch = append(s.batch, &rec)
	full := len(s.batch) >= s.batchSize
	s.mu.Unlock()

	if full {
		s.Flush(context.Background())
	}
}

// Flush writes the pending batch. A record whose insert fails is logged and
// dropped; the rest of the batch still lands.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	pending := s.batch
	s.batch = make([]*models.GameRecord, 0, s.batchSize)
	s.mu.Unlock()

	if len(pending) == 0 {
		return
	}
	inserted := 0
	for _, rec := range pending {
		if err := s.insert(ctx, rec); err != nil {
			logrus.Errorf("recorder: insert record %s: %v", rec.ID, err)
			continue
		}
		inserted++
	}
	logrus.Infof("recorder: flushed %d/%d records", inserted, len(pending))
}

// Pending reports how many records await the next flush.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batch)
}
