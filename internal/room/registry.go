// internal/room/registry.go
package room

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/models"
)

const (
	codeAttempts     = 32
	candidateLockTTL = 5 * time.Second
)

// Registry owns the room lifecycle. Every mutation serializes on a per-room
// mutex, reads the current row from the Store, applies the transition, and
// writes the row back, so concurrent operations on one room are linearized
// even though the Store itself has no transactions around reads.
type Registry struct {
	store Store
	locks Locker
	cfg   config.Config

	// OnCountdown fires after a room transitions waiting -> countdown.
	// OnCountdownCancel fires on the countdown -> waiting back-edge.
	// OnEmpty fires after a room is deleted. All three run while the
	// per-room mutex is held; wired callbacks must not re-enter the
	// registry synchronously.
	OnCountdown       func(roomID uuid.UUID)
	OnCountdownCancel func(roomID uuid.UUID)
	OnEmpty           func(roomID uuid.UUID)

	mu      sync.Mutex
	roomMus map[uuid.UUID]*sync.Mutex
}

// NewRegistry builds a registry over the given store and locker.
func NewRegistry(store Store, locks Locker, cfg config.Config) *Registry {
	return &Registry{
		store:   store,
		locks:   locks,
		cfg:     cfg,
		roomMus: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (reg *Registry) lockRoom(id uuid.UUID) *sync.Mutex {
	reg.mu.Lock()
	m, ok := reg.roomMus[id]
	if !ok {
		m = &sync.Mutex{}
		reg.roomMus[id] = m
	}
	reg.mu.Unlock()
	m.Lock()
	return m
}

func (reg *Registry) dropRoomMutex(id uuid.UUID) {
	reg.mu.Lock()
	delete(reg.roomMus, id)
	reg.mu.Unlock()
}

// CreateRoom creates a room hosted by the given user. The host counts as
// ready for all start checks.
func (reg *Registry) CreateRoom(ctx context.Context, hostID uuid.UUID, profile models.Profile, typ models.RoomType) (*models.Room, error) {
	if existing, err := reg.store.FindActiveByUser(ctx, hostID); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	} else if existing != nil {
		return nil, ErrAlreadyInRoom
	}

	code, err := reg.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	r := &models.Room{
		ID:       uuid.New(),
		RoomCode: code,
		Type:     typ,
		Status:   models.RoomWaiting,
		HostID:   hostID,
		Players: []models.Player{{
			UserID:    hostID,
			Nickname:  profile.Nickname,
			AvatarURL: profile.AvatarURL,
			IsHost:    true,
		}},
		CreatedAt: now,
		ExpiresAt: now.Add(reg.cfg.RoomTTL),
	}
	if err := reg.store.Insert(ctx, r); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}
	logrus.Infof("room %s created (code=%s type=%s host=%s)", r.ID, code, typ, hostID)
	return r.Clone(), nil
}

// generateCode draws 6-digit codes until one is unused.
func (reg *Registry) generateCode(ctx context.Context) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := fmt.Sprintf("%d", 100000+rand.Intn(900000))
		exists, err := reg.store.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("room code check: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("room code space exhausted after %d attempts", codeAttempts)
}

// Join adds a user to a room that has not started playing. The joiner starts
// not-ready, so a join alone never triggers the auto countdown; a join during
// countdown rides along and gets seated when the round begins.
func (reg *Registry) Join(ctx context.Context, roomID, userID uuid.UUID, profile models.Profile) (*models.Room, error) {
	m := reg.lockRoom(roomID)
	defer m.Unlock()

	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	if r.PlayerIndex(userID) >= 0 {
		return nil, ErrAlreadyInThisRoom
	}
	if existing, err := reg.store.FindActiveByUser(ctx, userID); err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	} else if existing != nil {
		return nil, ErrAlreadyInRoom
	}
	if r.Status == models.RoomPlaying || r.Status == models.RoomFinished {
		return nil, ErrRoomClosed
	}
	if len(r.Players) >= reg.cfg.MaxPlayersPerRoom {
		return nil, ErrRoomFull
	}

	r.Players = append(r.Players, models.Player{
		UserID:    userID,
		Nickname:  profile.Nickname,
		AvatarURL: profile.AvatarURL,
	})
	r.ExpiresAt = time.Now().Add(reg.cfg.RoomTTL)
	if err := reg.store.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("join room: %w", err)
	}
	logrus.Infof("user %s joined room %s (%d/%d)", userID, roomID, len(r.Players), reg.cfg.MaxPlayersPerRoom)
	return r.Clone(), nil
}

// JoinByCode resolves a room code and joins it.
func (reg *Registry) JoinByCode(ctx context.Context, code string, userID uuid.UUID, profile models.Profile) (*models.Room, error) {
	r, err := reg.store.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("join by code: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	return reg.Join(ctx, r.ID, userID, profile)
}

// Leave removes a user from a room. When the room empties it is deleted and
// a nil room is returned. When the host leaves, the longest-seated remaining
// player inherits the host flag. A countdown room that drops below the start
// threshold reverts to waiting and stays there until the next ready change.
func (reg *Registry) Leave(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	m := reg.lockRoom(roomID)
	defer m.Unlock()

	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("leave room: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	idx := r.PlayerIndex(userID)
	if idx < 0 {
		return nil, ErrUserNotInRoom
	}

	wasHost := r.Players[idx].IsHost
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	if len(r.Players) == 0 {
		if err := reg.store.Delete(ctx, roomID); err != nil {
			return nil, fmt.Errorf("leave room: %w", err)
		}
		reg.dropRoomMutex(roomID)
		logrus.Infof("room %s dissolved (last player %s left)", roomID, userID)
		if reg.OnEmpty != nil {
			reg.OnEmpty(roomID)
		}
		return nil, nil
	}

	if wasHost {
		r.Players[0].IsHost = true
		r.HostID = r.Players[0].UserID
		logrus.Infof("room %s host transferred to %s", roomID, r.HostID)
	}
	canceled := false
	if r.Status == models.RoomCountdown && len(r.Players) < reg.cfg.PublicStartCount {
		r.Status = models.RoomWaiting
		canceled = true
	}
	r.ExpiresAt = time.Now().Add(reg.cfg.RoomTTL)
	if err := reg.store.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("leave room: %w", err)
	}
	if canceled && reg.OnCountdownCancel != nil {
		reg.OnCountdownCancel(roomID)
	}
	return r.Clone(), nil
}

// SetReady toggles a player's ready flag. When the flip leaves a public room
// at or above the start threshold with everyone ready, the room enters
// countdown and OnCountdown fires.
func (reg *Registry) SetReady(ctx context.Context, roomID, userID uuid.UUID, ready bool) (*models.Room, error) {
	m := reg.lockRoom(roomID)
	defer m.Unlock()

	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("set ready: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	if r.Status != models.RoomWaiting {
		return nil, ErrInvalidRoomState
	}
	idx := r.PlayerIndex(userID)
	if idx < 0 {
		return nil, ErrUserNotInRoom
	}

	r.Players[idx].IsReady = ready
	entered := ready && reg.shouldAutoCountdown(r)
	if entered {
		r.Status = models.RoomCountdown
	}
	r.ExpiresAt = time.Now().Add(reg.cfg.RoomTTL)
	if err := reg.store.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("set ready: %w", err)
	}
	if entered {
		logrus.Infof("room %s entering countdown (%d players ready)", roomID, len(r.Players))
		if reg.OnCountdown != nil {
			reg.OnCountdown(roomID)
		}
	}
	return r.Clone(), nil
}

// shouldAutoCountdown: public room, at or above the start threshold, every
// non-host player ready. The host is implicitly ready.
func (reg *Registry) shouldAutoCountdown(r *models.Room) bool {
	return r.Type == models.RoomTypePublic &&
		r.Status == models.RoomWaiting &&
		len(r.Players) >= reg.cfg.PublicStartCount &&
		allReady(r)
}

func allReady(r *models.Room) bool {
	for i := range r.Players {
		if !r.Players[i].IsReady && !r.Players[i].IsHost {
			return false
		}
	}
	return true
}

// everyoneReady is the strict variant used for the next-game cycle: the host
// has to signal too.
func everyoneReady(r *models.Room) bool {
	for i := range r.Players {
		if !r.Players[i].IsReady {
			return false
		}
	}
	return true
}

// StartGame is the host's manual start. Valid from waiting or countdown.
// Public rooms require every non-host player ready; a private host may start
// whenever they like.
func (reg *Registry) StartGame(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	m := reg.lockRoom(roomID)
	defer m.Unlock()

	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("start game: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	if r.HostID != userID {
		return nil, ErrNotHost
	}
	switch r.Status {
	case models.RoomWaiting, models.RoomCountdown:
	case models.RoomPlaying:
		return nil, ErrGameAlreadyStarted
	default:
		return nil, ErrInvalidRoomState
	}
	if len(r.Players) < 1 {
		return nil, ErrNotEnoughPlayers
	}
	if r.Type == models.RoomTypePublic && !allReady(r) {
		return nil, ErrPlayersNotReady
	}
	return reg.beginPlaying(ctx, r)
}

// StartPlaying flips a countdown room into playing. Called by the countdown
// timer on expiry; a room that reverted to waiting in the meantime is left
// alone.
func (reg *Registry) StartPlaying(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	m := reg.lockRoom(roomID)
	defer m.Unlock()

	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("start playing: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	if r.Status != models.RoomCountdown {
		return nil, ErrInvalidRoomState
	}
	return reg.beginPlaying(ctx, r)
}

// beginPlaying assigns seats in join order, zeroes scores, and stamps the
// round start. Caller holds the room mutex.
func (reg *Registry) beginPlaying(ctx context.Context, r *models.Room) (*models.Room, error) {
	for i := range r.Players {
		pos, _ := PositionFor(i + 1)
		r.Players[i].PositionID = pos.ID
		r.Players[i].Orientation = pos.Orientation
		r.Players[i].Side = pos.Side
		r.Players[i].Score = 0
		// ready flags are consumed by the start, the next round needs
		// fresh confirmations
		r.Players[i].IsReady = false
	}
	now := time.Now()
	r.Status = models.RoomPlaying
	r.StartTime = &now
	r.EndTime = nil
	r.CurrentRound++
	r.ExpiresAt = now.Add(reg.cfg.RoomTTL)
	if err := reg.store.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("begin playing: %w", err)
	}
	logrus.Infof("room %s round %d started with %d players", r.ID, r.CurrentRound, len(r.Players))
	return r.Clone(), nil
}

// EndGame flips a playing room to finished and stamps the end time. Ranking
// and record emission happen in the game session controller.
func (reg *Registry) EndGame(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	m := reg.lockRoom(roomID)
	defer m.Unlock()

	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("end game: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	if r.Status != models.RoomPlaying {
		return nil, ErrRoomNotPlaying
	}
	now := time.Now()
	r.Status = models.RoomFinished
	r.EndTime = &now
	r.ExpiresAt = now.Add(reg.cfg.RoomTTL)
	if err := reg.store.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("end game: %w", err)
	}
	logrus.Infof("room %s round %d finished", roomID, r.CurrentRound)
	return r.Clone(), nil
}

// ReadyForNextGame marks one player as in for another round, zeroing their
// score. Once every player has signaled, the room drops back to waiting with
// the round times cleared; a public room at threshold then re-enters countdown
// immediately, since everyone just confirmed.
func (reg *Registry) ReadyForNextGame(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	m := reg.lockRoom(roomID)
	defer m.Unlock()

	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("ready for next game: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	idx := r.PlayerIndex(userID)
	if idx < 0 {
		return nil, ErrUserNotInRoom
	}
	if r.Status != models.RoomFinished {
		return nil, ErrInvalidRoomState
	}
	r.Players[idx].IsReady = true
	r.Players[idx].Score = 0
	if everyoneReady(r) {
		r.Status = models.RoomWaiting
		r.StartTime = nil
		r.EndTime = nil
	}

	entered := reg.shouldAutoCountdown(r)
	if entered {
		r.Status = models.RoomCountdown
	}
	r.ExpiresAt = time.Now().Add(reg.cfg.RoomTTL)
	if err := reg.store.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("ready for next game: %w", err)
	}
	if entered {
		logrus.Infof("room %s entering countdown for round %d", roomID, r.CurrentRound+1)
		if reg.OnCountdown != nil {
			reg.OnCountdown(roomID)
		}
	}
	return r.Clone(), nil
}

// UpdatePlayerScore applies a score delta during play and returns the
// updated room.
func (reg *Registry) UpdatePlayerScore(ctx context.Context, roomID, userID uuid.UUID, delta int) (*models.Room, error) {
	m := reg.lockRoom(roomID)
	defer m.Unlock()

	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("update score: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	if r.Status != models.RoomPlaying {
		return nil, ErrRoomNotPlaying
	}
	idx := r.PlayerIndex(userID)
	if idx < 0 {
		return nil, ErrUserNotInRoom
	}
	r.Players[idx].Score += delta
	if err := reg.store.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("update score: %w", err)
	}
	return r.Clone(), nil
}

// SetWeapon records a player's chosen loadout for the running round.
func (reg *Registry) SetWeapon(ctx context.Context, roomID, userID uuid.UUID, weaponType int) (*models.Room, error) {
	m := reg.lockRoom(roomID)
	defer m.Unlock()

	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("set weapon: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	idx := r.PlayerIndex(userID)
	if idx < 0 {
		return nil, ErrUserNotInRoom
	}
	r.Players[idx].WeaponType = weaponType
	if err := reg.store.Update(ctx, r); err != nil {
		return nil, fmt.Errorf("set weapon: %w", err)
	}
	return r.Clone(), nil
}

// GetRoom fetches a room by id.
func (reg *Registry) GetRoom(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	r, err := reg.store.FindByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// GetRoomByCode fetches a room by its join code.
func (reg *Registry) GetRoomByCode(ctx context.Context, code string) (*models.Room, error) {
	r, err := reg.store.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get room by code: %w", err)
	}
	if r == nil {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

// RoomForUser returns the active room the user sits in, or ErrUserNotInRoom.
func (reg *Registry) RoomForUser(ctx context.Context, userID uuid.UUID) (*models.Room, error) {
	r, err := reg.store.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("room for user: %w", err)
	}
	if r == nil {
		return nil, ErrUserNotInRoom
	}
	return r, nil
}

// ListPublicRooms returns joinable and in-progress public rooms as summary
// items, oldest first.
func (reg *Registry) ListPublicRooms(ctx context.Context) ([]models.RoomListItem, error) {
	rooms, err := reg.store.ListPublic(ctx, models.RoomWaiting, models.RoomCountdown, models.RoomPlaying)
	if err != nil {
		return nil, fmt.Errorf("list public rooms: %w", err)
	}
	items := make([]models.RoomListItem, 0, len(rooms))
	for _, r := range rooms {
		item := models.RoomListItem{
			ID:          r.ID,
			RoomCode:    r.RoomCode,
			Type:        r.Type,
			Status:      r.Status,
			PlayerCount: len(r.Players),
			CreatedAt:   r.CreatedAt,
		}
		if h := r.HostPlayer(); h != nil {
			item.HostName = h.Nickname
		}
		items = append(items, item)
	}
	return items, nil
}

// FindMatchable scans waiting public rooms for one the user could join. Each
// candidate is checked under a short redis lock and re-read before being
// returned, so a room filled by a concurrent matcher is skipped rather than
// overfilled.
func (reg *Registry) FindMatchable(ctx context.Context, userID uuid.UUID) (*models.Room, error) {
	rooms, err := reg.store.ListPublic(ctx, models.RoomWaiting)
	if err != nil {
		return nil, fmt.Errorf("find matchable: %w", err)
	}
	owner := userID.String()
	for _, r := range rooms {
		if len(r.Players) >= reg.cfg.MaxPlayersPerRoom || r.PlayerIndex(userID) >= 0 {
			continue
		}
		key := lockKey(r.ID)
		ok, err := reg.locks.AcquireLock(ctx, key, owner, candidateLockTTL)
		if err != nil {
			return nil, fmt.Errorf("find matchable: %w", err)
		}
		if !ok {
			continue
		}
		fresh, err := reg.store.FindByID(ctx, r.ID)
		if _, relErr := reg.locks.ReleaseLock(ctx, key, owner); relErr != nil {
			logrus.Warnf("release lock %s: %v", key, relErr)
		}
		if err != nil {
			return nil, fmt.Errorf("find matchable: %w", err)
		}
		if fresh == nil || fresh.Status != models.RoomWaiting || len(fresh.Players) >= reg.cfg.MaxPlayersPerRoom {
			continue
		}
		return fresh, nil
	}
	return nil, ErrRoomNotFound
}

func lockKey(roomID uuid.UUID) string {
	return "room:lock:" + roomID.String()
}

// SweepExpired deletes rooms past their TTL and fires OnEmpty for each so
// timers and routing state get torn down with them.
func (reg *Registry) SweepExpired(ctx context.Context) error {
	ids, err := reg.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("sweep expired: %w", err)
	}
	for _, id := range ids {
		reg.dropRoomMutex(id)
		if reg.OnEmpty != nil {
			reg.OnEmpty(id)
		}
	}
	if len(ids) > 0 {
		logrus.Infof("swept %d expired rooms", len(ids))
	}
	return nil
}
