// internal/room/store.go
package room

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harborfun/fisharena/internal/models"
)

// Store is the persistence surface the registry runs on. The production
// implementation is database.RoomStore; tests use MemStore. Lookups return
// (nil, nil) when no row matches.
type Store interface {
	Insert(ctx context.Context, r *models.Room) error
	Update(ctx context.Context, r *models.Room) error
	Delete(ctx context.Context, id uuid.UUID) error

	FindByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	FindByCode(ctx context.Context, code string) (*models.Room, error)
	FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Room, error)
	ListPublic(ctx context.Context, statuses ...models.RoomStatus) ([]*models.Room, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// Locker guards cross-process critical sections. Backed by redis SET NX in
// production (cache.Cache) and by a local map in tests.
type Locker interface {
	AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, owner string) (bool, error)
}
