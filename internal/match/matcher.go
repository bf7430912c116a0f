// internal/match/matcher.go
package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/game"
	"github.com/harborfun/fisharena/internal/models"
	"github.com/harborfun/fisharena/internal/room"
)

const (
	batchLockKey = "matching:batch:lock"
	batchLockTTL = 5 * time.Second
)

// Matcher drains the queue into freshly created public rooms on a fixed
// tick. The batch step runs under a cross-process lock, so with several
// server instances exactly one of them forms rooms on any given tick.
//
// A formed match is tentative: the first batch member hosts and counts as
// confirmed, everyone else must confirm within the ready timeout or the
// room is torn down and the confirmed players go back to the head of the
// queue.
type Matcher struct {
	queue  Queue
	reg    *room.Registry
	engine *game.Engine
	locks  room.Locker
	bc     game.Broadcaster
	cfg    config.Config

	// lock owner for this process
	instanceID string
}

func NewMatcher(queue Queue, reg *room.Registry, engine *game.Engine, locks room.Locker, bc game.Broadcaster, cfg config.Config) *Matcher {
	return &Matcher{
		queue:      queue,
		reg:        reg,
		engine:     engine,
		locks:      locks,
		bc:         bc,
		cfg:        cfg,
		instanceID: uuid.NewString(),
	}
}

// Run ticks the matcher until ctx is canceled. Meant to be started as a
// goroutine from main.
func (m *Matcher) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.MatchTick)
	defer ticker.Stop()
	logrus.Infof("matchmaker running (tick=%s, batch=%d)", m.cfg.MatchTick, m.cfg.MaxPlayersPerRoom)
	for {
		select {
		case <-ctx.Done():
			logrus.Info("matchmaker stopped")
			return
		case <-ticker.C:
			if err := m.Tick(ctx); err != nil {
				logrus.Errorf("matchmaking tick: %v", err)
			}
		}
	}
}

// Tick runs one batch step. A room forms only once a full room's worth of
// players is waiting. When another instance holds the batch lock the tick
// is skipped; the queue is drained on a later tick.
func (m *Matcher) Tick(ctx context.Context) error {
	ok, err := m.locks.AcquireLock(ctx, batchLockKey, m.instanceID, batchLockTTL)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	defer func() {
		if _, err := m.locks.ReleaseLock(ctx, batchLockKey, m.instanceID); err != nil {
			logrus.Warnf("release matchmaking lock: %v", err)
		}
	}()

	n, err := m.queue.Len(ctx)
	if err != nil {
		return err
	}
	if n < m.cfg.MaxPlayersPerRoom {
		return nil
	}
	batch, err := m.queue.TakeBatch(ctx, m.cfg.MaxPlayersPerRoom)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return m.placeBatch(ctx, batch)
}

// placeBatch creates one room from a dequeued batch. The first member whose
// room creation succeeds becomes host; members who can no longer be placed
// (they joined a room by hand since queueing) are dropped with a cancel
// notice.
func (m *Matcher) placeBatch(ctx context.Context, batch []models.MatchingPlayer) error {
	var r *models.Room
	placed := make([]models.MatchingPlayer, 0, len(batch))

	for _, p := range batch {
		profile := models.Profile{Nickname: p.Nickname, AvatarURL: p.AvatarURL}
		var next *models.Room
		var err error
		if r == nil {
			next, err = m.reg.CreateRoom(ctx, p.UserID, profile, models.RoomTypePublic)
		} else {
			next, err = m.reg.Join(ctx, r.ID, p.UserID, profile)
		}
		if err != nil {
			logrus.Warnf("matchmaking: cannot place %s: %v", p.UserID, err)
			m.bc.SendUser(p.UserID, game.MatchCanceled("could not be placed", nil))
			continue
		}
		r = next
		placed = append(placed, p)
	}

	if r == nil {
		return nil
	}
	if len(placed) < m.cfg.PublicStartCount {
		// batch collapsed below a viable match, unwind and requeue
		for _, p := range placed {
			if _, err := m.reg.Leave(ctx, r.ID, p.UserID); err != nil {
				logrus.Errorf("matchmaking: unwind leave %s: %v", p.UserID, err)
			}
		}
		if err := m.queue.PushFront(ctx, placed...); err != nil {
			return err
		}
		return nil
	}

	for _, p := range placed {
		m.bc.SendUser(p.UserID, game.MatchSuccess(r, m.cfg.ReadyTimeoutSeconds))
	}
	logrus.Infof("matchmaking: room %s formed with %d players", r.ID, len(placed))

	roomID := r.ID
	m.engine.Start(roomID, game.TimerReadyTimeout, m.cfg.ReadyTimeoutSeconds, func(remaining int) {
		m.bc.BroadcastRoom(roomID, game.MatchReadyCountdown(remaining))
	}, func() {
		m.expireMatch(context.Background(), roomID)
	})
	return nil
}

// expireMatch fires when a formed match ran out its confirmation window
// still in waiting. Confirmed players go back to the head of the queue,
// unconfirmed ones are dropped, and the room is dismantled.
func (m *Matcher) expireMatch(ctx context.Context, roomID uuid.UUID) {
	r, err := m.reg.GetRoom(ctx, roomID)
	if err != nil {
		return
	}
	if r.Status != models.RoomWaiting {
		// countdown or game already started, nothing to undo
		return
	}

	var notReady []uuid.UUID
	for _, p := range r.Players {
		if !p.IsReady && !p.IsHost {
			notReady = append(notReady, p.UserID)
		}
	}

	var confirmed []models.MatchingPlayer
	for _, p := range r.Players {
		if p.IsReady || p.IsHost {
			confirmed = append(confirmed, models.MatchingPlayer{
				UserID:    p.UserID,
				Nickname:  p.Nickname,
				AvatarURL: p.AvatarURL,
				QueuedAt:  time.Now(),
			})
			m.bc.SendUser(p.UserID, game.MatchCanceled("opponent did not confirm", notReady))
		} else {
			m.bc.SendUser(p.UserID, game.MatchTimeout())
		}
	}

	for _, p := range r.Players {
		if _, err := m.reg.Leave(ctx, roomID, p.UserID); err != nil {
			logrus.Errorf("matchmaking: dismantle room %s, leave %s: %v", roomID, p.UserID, err)
		}
	}
	if len(confirmed) > 0 {
		if err := m.queue.PushFront(ctx, confirmed...); err != nil {
			logrus.Errorf("matchmaking: requeue confirmed players: %v", err)
		}
	}
	logrus.Infof("matchmaking: room %s expired unconfirmed, %d players requeued", roomID, len(confirmed))
}

// CancelReadyWatchdog stops the confirmation timer, typically because the
// room went into countdown. Wired to the registry's OnCountdown hook.
func (m *Matcher) CancelReadyWatchdog(roomID uuid.UUID) {
	m.engine.Cancel(roomID, game.TimerReadyTimeout)
}

// ConfirmReady marks a matched player as confirmed. The all-ready check and
// the countdown transition happen inside the registry.
func (m *Matcher) ConfirmReady(ctx context.Context, userID uuid.UUID) (*models.Room, error) {
	r, err := m.reg.RoomForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.reg.SetReady(ctx, r.ID, userID, true)
}

// Enqueue puts a player into the waiting line. Players already seated in an
// active room cannot queue.
func (m *Matcher) Enqueue(ctx context.Context, p models.MatchingPlayer) (bool, error) {
	if _, err := m.reg.RoomForUser(ctx, p.UserID); err == nil {
		return false, room.ErrAlreadyInRoom
	} else if !room.IsNotFound(err) {
		return false, err
	}
	if p.QueuedAt.IsZero() {
		p.QueuedAt = time.Now()
	}
	return m.queue.Enqueue(ctx, p)
}

// Dequeue removes a player from the waiting line, e.g. on cancel or
// disconnect.
func (m *Matcher) Dequeue(ctx context.Context, userID uuid.UUID) (bool, error) {
	return m.queue.Remove(ctx, userID)
}

// InQueue reports whether a player is currently waiting.
func (m *Matcher) InQueue(ctx context.Context, userID uuid.UUID) (bool, error) {
	return m.queue.Contains(ctx, userID)
}

// ListQueue returns the waiting players in queue order.
func (m *Matcher) ListQueue(ctx context.Context) ([]models.MatchingPlayer, error) {
	return m.queue.List(ctx)
}
