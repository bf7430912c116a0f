// internal/recorder/recorder_test.go
package recorder

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborfun/fisharena/internal/models"
)

func testService(insert InsertFunc) *Service {
	return &Service{
		queue:      "test_records",
		batchSize:  3,
		flushDelay: time.Second,
		insert:     insert,
		batch:      make([]*models.GameRecord, 0, 3),
	}
}

func payload(t *testing.T, rec models.GameRecord) string {
	t.Helper()
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	return string(data)
}

func TestEnqueueFlushesWhenBatchFills(t *testing.T) {
	var inserted []*models.GameRecord
	s := testService(func(ctx context.Context, rec *models.GameRecord) error {
		inserted = append(inserted, rec)
		return nil
	})

	for i := 0; i < 2; i++ {
		s.Enqueue(payload(t, models.GameRecord{ID: uuid.New()}))
	}
	assert.Equal(t, 2, s.Pending())
	assert.Empty(t, inserted)

	s.Enqueue(payload(t, models.GameRecord{ID: uuid.New()}))
	assert.Equal(t, 0, s.Pending())
	assert.Len(t, inserted, 3)
}

func TestUndecodablePayloadDropped(t *testing.T) {
	s := testService(func(ctx context.Context, rec *models.GameRecord) error { return nil })
	s.Enqueue("{not json")
	assert.Equal(t, 0, s.Pending())
}

func TestFlushSurvivesInsertFailure(t *testing.T) {
	bad := uuid.New()
	var inserted []uuid.UUID
	s := testService(func(ctx context.Context, rec *models.GameRecord) error {
		if rec.ID == bad {
			return context.DeadlineExceeded
		}
		inserted = append(inserted, rec.ID)
		return nil
	})

	good := uuid.New()
	s.Enqueue(payload(t, models.GameRecord{ID: bad}))
	s.Enqueue(payload(t, models.GameRecord{ID: good}))
	s.Flush(context.Background())

	// the failing record is dropped, the good one still lands
	assert.Equal(t, []uuid.UUID{good}, inserted)
	assert.Equal(t, 0, s.Pending())
}
