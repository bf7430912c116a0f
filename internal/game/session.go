// internal/game/session.go
package game

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/models"
	"github.com/harborfun/fisharena/internal/room"
)

// Broadcaster pushes events to connected clients. Implemented by ws.Router;
// both methods are best-effort and never block.
type Broadcaster interface {
	BroadcastRoom(roomID uuid.UUID, ev Event)
	SendUser(userID uuid.UUID, ev Event)
}

// RecordPublisher hands finished game records to the write-behind queue.
type RecordPublisher interface {
	PublishRecord(ctx context.Context, record interface{}) error
}

// StatsUpdater applies one player's per-game aggregate deltas. Matches
// database.UpdateGameStats.
type StatsUpdater func(ctx context.Context, userID uuid.UUID, score int, won bool) error

// Session drives rounds from countdown through the final record. It owns
// the countdown and game timers and the per-round event log; room state
// transitions themselves stay in the registry.
type Session struct {
	reg     *room.Registry
	engine  *Engine
	cfg     config.Config
	bc      Broadcaster
	records RecordPublisher
	stats   StatsUpdater

	events *eventLog
}

// NewSession wires a session controller. records and stats may be nil in
// tests; both paths are skipped when unset.
func NewSession(reg *room.Registry, engine *Engine, cfg config.Config, bc Broadcaster, records RecordPublisher, stats StatsUpdater) *Session {
	return &Session{
		reg:     reg,
		engine:  engine,
		cfg:     cfg,
		bc:      bc,
		records: records,
		stats:   stats,
		events:  newEventLog(),
	}
}

// StartCountdown begins the pre-game countdown. Ticks broadcast remaining
// seconds; expiry starts the round. Safe to call from the registry's
// OnCountdown hook.
func (s *Session) StartCountdown(roomID uuid.UUID) {
	s.engine.Start(roomID, TimerCountdown, s.cfg.CountdownSeconds,
		func(remaining int) {
			s.bc.BroadcastRoom(roomID, GameCountdown(remaining))
		},
		func() {
			s.startRound(context.Background(), roomID)
		})
}

// CancelCountdown stops a pending countdown, e.g. after a player left and
// the room fell back to waiting.
func (s *Session) CancelCountdown(roomID uuid.UUID) {
	s.engine.Cancel(roomID, TimerCountdown)
}

// startRound is the countdown-expiry path. A room that reverted to waiting
// in the meantime is left untouched.
func (s *Session) startRound(ctx context.Context, roomID uuid.UUID) {
	r, err := s.reg.StartPlaying(ctx, roomID)
	if err != nil {
		logrus.Warnf("room %s: countdown expired but round not started: %v", roomID, err)
		return
	}
	s.beginRound(r)
}

// StartByHost is the host's manual start. It validates through the registry,
// kills any pending countdown, and begins the round immediately.
func (s *Session) StartByHost(ctx context.Context, roomID, userID uuid.UUID) (*models.Room, error) {
	r, err := s.reg.StartGame(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	s.engine.Cancel(roomID, TimerCountdown)
	s.beginRound(r)
	return r, nil
}

func (s *Session) beginRound(r *models.Room) {
	s.events.reset(r.ID)
	s.bc.BroadcastRoom(r.ID, GameStart(r))
	s.engine.Start(r.ID, TimerGame, s.cfg.GameDurationSeconds,
		func(remaining int) {
			s.bc.BroadcastRoom(r.ID, GameTime(remaining))
		},
		func() {
			if _, err := s.EndRound(context.Background(), r.ID); err != nil {
				logrus.Errorf("room %s: game timer expiry: %v", r.ID, err)
			}
		})
}

// HandleGameEvent records a scoring-relevant in-round event and fans it out.
// The payload never moves score; that happens only through UpdateScore.
func (s *Session) HandleGameEvent(ctx context.Context, roomID, userID uuid.UUID, ev models.GameEvent) error {
	r, err := s.reg.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	if r.Status != models.RoomPlaying {
		return room.ErrRoomNotPlaying
	}
	idx := r.PlayerIndex(userID)
	if idx < 0 {
		return room.ErrUserNotInRoom
	}
	ev.UserID = userID
	ev.Nickname = r.Players[idx].Nickname
	s.events.append(roomID, userID, ev)
	s.bc.BroadcastRoom(roomID, GameEventBroadcast(ev))
	return nil
}

// UpdateScore applies a score delta and broadcasts the new total.
func (s *Session) UpdateScore(ctx context.Context, roomID, userID uuid.UUID, delta int) error {
	r, err := s.reg.UpdatePlayerScore(ctx, roomID, userID, delta)
	if err != nil {
		return err
	}
	idx := r.PlayerIndex(userID)
	s.bc.BroadcastRoom(roomID, ScoreUpdate(userID, r.Players[idx].Score, delta))
	return nil
}

// EndByHost ends a running round on the host's request.
func (s *Session) EndByHost(ctx context.Context, roomID, userID uuid.UUID) (*models.GameRecord, error) {
	r, err := s.reg.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if r.HostID != userID {
		return nil, room.ErrNotHost
	}
	return s.EndRound(ctx, roomID)
}

// EndRound finishes the round: flips the room, ranks players, publishes the
// record, updates per-user aggregates, and broadcasts game:end. Called by
// the game timer on expiry and by EndByHost.
func (s *Session) EndRound(ctx context.Context, roomID uuid.UUID) (*models.GameRecord, error) {
	r, err := s.reg.EndGame(ctx, roomID)
	if err != nil {
		return nil, err
	}
	s.engine.Cancel(roomID, TimerGame)

	record := s.buildRecord(r)
	if s.records != nil {
		if err := s.records.PublishRecord(ctx, record); err != nil {
			logrus.Errorf("room %s: publish game record: %v", roomID, err)
		}
	}
	if s.stats != nil {
		for _, p := range record.Players {
			if err := s.stats(ctx, p.UserID, p.Score, p.Rank == 1); err != nil {
				logrus.Errorf("room %s: update stats for %s: %v", roomID, p.UserID, err)
			}
		}
	}
	s.bc.BroadcastRoom(roomID, GameEnd(record))
	return record, nil
}

// buildRecord ranks players by score, highest first. Ties keep join order,
// so the earlier joiner wins the tie.
func (s *Session) buildRecord(r *models.Room) *models.GameRecord {
	perUser := s.events.drain(r.ID)

	results := make([]models.PlayerResult, 0, len(r.Players))
	for _, p := range r.Players {
		results = append(results, models.PlayerResult{
			UserID:   p.UserID,
			Nickname: p.Nickname,
			Score:    p.Score,
			Events:   perUser[p.UserID],
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	for i := range results {
		results[i].Rank = i + 1
	}

	record := &models.GameRecord{
		ID:       uuid.New(),
		RoomID:   r.ID,
		RoomCode: r.RoomCode,
		EndTime:  time.Now(),
		Players:  results,
	}
	if r.StartTime != nil {
		record.StartTime = *r.StartTime
	}
	if r.EndTime != nil {
		record.EndTime = *r.EndTime
	}
	record.Duration = int(record.EndTime.Sub(record.StartTime) / time.Second)
	if len(results) > 0 {
		record.Winner = results[0]
	}
	return record
}

// RoundStatus reports the remaining seconds of whichever timer the room is
// currently running.
func (s *Session) RoundStatus(roomID uuid.UUID) (kind TimerKind, remaining int, ok bool) {
	for _, k := range []TimerKind{TimerGame, TimerCountdown, TimerReadyTimeout} {
		if secs, running := s.engine.Remaining(roomID, k); running {
			return k, secs, true
		}
	}
	return "", 0, false
}

// OnRoomEmpty tears down timers and buffered events for a deleted room.
// Wired to the registry's OnEmpty hook.
func (s *Session) OnRoomEmpty(roomID uuid.UUID) {
	s.engine.CancelAll(roomID)
	s.events.drain(roomID)
}

// eventLog buffers in-round events per room and player until the round's
// record is built.
type eventLog struct {
	mu     sync.Mutex
	byRoom map[uuid.UUID]map[uuid.UUID][]models.GameEvent
}

func newEventLog() *eventLog {
	return &eventLog{byRoom: make(map[uuid.UUID]map[uuid.UUID][]models.GameEvent)}
}

func (l *eventLog) reset(roomID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byRoom[roomID] = make(map[uuid.UUID][]models.GameEvent)
}

func (l *eventLog) append(roomID, userID uuid.UUID, ev models.GameEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.byRoom[roomID]
	if !ok {
		m = make(map[uuid.UUID][]models.GameEvent)
		l.byRoom[roomID] = m
	}
	m[userID] = append(m[userID], ev)
}

func (l *eventLog) drain(roomID uuid.UUID) map[uuid.UUID][]models.GameEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := l.byRoom[roomID]
	delete(l.byRoom, roomID)
	return m
}
