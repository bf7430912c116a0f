// internal/room/memstore.go
package room

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborfun/fisharena/internal/models"
)

// MemStore is an in-memory Store used by tests and local development. All
// rooms are deep-copied on the way in and out so callers never share state
// with the store.
type MemStore struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*models.Room
}

func NewMemStore() *MemStore {
	return &MemStore{rooms: make(map[uuid.UUID]*models.Room)}
}

func (s *MemStore) Insert(ctx context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r.Clone()
	return nil
}

func (s *MemStore) Update(ctx context.Context, r *models.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.ID] = r.Clone()
	return nil
}

func (s *MemStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
	return nil
}

func (s *MemStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[id]; ok {
		return r.Clone(), nil
	}
	return nil, nil
}

func (s *MemStore) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.RoomCode == code {
			return r.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemStore) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.Status == models.RoomFinished {
			continue
		}
		for _, p := range r.Players {
			if p.UserID == userID {
				return r.Clone(), nil
			}
		}
	}
	return nil, nil
}

func (s *MemStore) ListPublic(ctx context.Context, statuses ...models.RoomStatus) ([]*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Room
	for _, r := range s.rooms {
		if r.Type != models.RoomTypePublic {
			continue
		}
		for _, st := range statuses {
			if r.Status == st {
				out = append(out, r.Clone())
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) CodeExists(ctx context.Context, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.RoomCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) DeleteExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, r := range s.rooms {
		if !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now) {
			ids = append(ids, id)
			delete(s.rooms, id)
		}
	}
	return ids, nil
}

// MemLocker is a single-process Locker for tests.
type MemLocker struct {
	mu    sync.Mutex
	locks map[string]string
}

func NewMemLocker() *MemLocker {
	return &MemLocker{locks: make(map[string]string)}
}

func (l *MemLocker) AcquireLock(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.locks[key]; held {
		return false, nil
	}
	l.locks[key] = owner
	return true, nil
}

func (l *MemLocker) ReleaseLock(ctx context.Context, key, owner string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[key] != owner {
		return false, nil
	}
	delete(l.locks, key)
	return true, nil
}
