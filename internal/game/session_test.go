// internal/game/session_test.go
package game

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/models"
	"github.com/harborfun/fisharena/internal/room"
)

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeBroadcaster) BroadcastRoom(roomID uuid.UUID, ev Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeBroadcaster) SendUser(userID uuid.UUID, ev Event) {
	f.BroadcastRoom(uuid.Nil, ev)
}

func (f *fakeBroadcaster) byType(typ string) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Event
	for _, ev := range f.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fakePublisher struct {
	mu      sync.Mutex
	records []*models.GameRecord
}

func (f *fakePublisher) PublishRecord(ctx context.Context, record interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record.(*models.GameRecord))
	return nil
}

type statCall struct {
	userID uuid.UUID
	score  int
	won    bool
}

func sessionFixture(t *testing.T, cfg config.Config) (*Session, *room.Registry, *fakeBroadcaster, *fakePublisher, *[]statCall) {
	t.Helper()
	reg := room.NewRegistry(room.NewMemStore(), room.NewMemLocker(), cfg)
	bc := &fakeBroadcaster{}
	pub := &fakePublisher{}
	var mu sync.Mutex
	calls := &[]statCall{}
	stats := func(ctx context.Context, userID uuid.UUID, score int, won bool) error {
		mu.Lock()
		defer mu.Unlock()
		*calls = append(*calls, statCall{userID: userID, score: score, won: won})
		return nil
	}
	s := NewSession(reg, NewEngine(), cfg, bc, pub, stats)
	reg.OnCountdown = s.StartCountdown
	reg.OnCountdownCancel = s.CancelCountdown
	reg.OnEmpty = s.OnRoomEmpty
	return s, reg, bc, pub, calls
}

func playingRoom(t *testing.T, s *Session, reg *room.Registry) (*models.Room, uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	host := uuid.New()
	guest := uuid.New()
	r, err := reg.CreateRoom(ctx, host, models.Profile{Nickname: "host"}, models.RoomTypePrivate)
	require.NoError(t, err)
	_, err = reg.Join(ctx, r.ID, guest, models.Profile{Nickname: "guest"})
	require.NoError(t, err)
	_, err = reg.SetReady(ctx, r.ID, guest, true)
	require.NoError(t, err)
	started, err := s.StartByHost(ctx, r.ID, host)
	require.NoError(t, err)
	return started, host, guest
}

func TestHostStartBroadcastsAndRunsGameTimer(t *testing.T) {
	cfg := config.Config{
		MaxPlayersPerRoom: 4, PublicStartCount: 2,
		CountdownSeconds: 5, GameDurationSeconds: 60,
		RoomTTL: time.Hour,
	}
	s, reg, bc, _, _ := sessionFixture(t, cfg)
	r, _, _ := playingRoom(t, s, reg)

	starts := bc.byType(EvtGameStart)
	require.Len(t, starts, 1)
	assert.Equal(t, models.RoomPlaying, starts[0].Data.(*models.Room).Status)

	kind, remaining, ok := s.RoundStatus(r.ID)
	require.True(t, ok)
	assert.Equal(t, TimerGame, kind)
	assert.InDelta(t, 60, remaining, 1)
}

func TestCountdownExpiryStartsRound(t *testing.T) {
	cfg := config.Config{
		MaxPlayersPerRoom: 4, PublicStartCount: 2,
		CountdownSeconds: 1, GameDurationSeconds: 60,
		RoomTTL: time.Hour,
	}
	s, reg, bc, _, _ := sessionFixture(t, cfg)

	ctx := context.Background()
	host := uuid.New()
	guest := uuid.New()
	r, err := reg.CreateRoom(ctx, host, models.Profile{Nickname: "host"}, models.RoomTypePublic)
	require.NoError(t, err)
	_, err = reg.Join(ctx, r.ID, guest, models.Profile{Nickname: "guest"})
	require.NoError(t, err)
	// guest readying up trips the auto countdown
	_, err = reg.SetReady(ctx, r.ID, guest, true)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		cur, err := reg.GetRoom(ctx, r.ID)
		return err == nil && cur.Status == models.RoomPlaying
	}, 4*time.Second, 50*time.Millisecond)

	assert.NotEmpty(t, bc.byType(EvtGameCountdown))
	assert.NotEmpty(t, bc.byType(EvtGameStart))

	kind, _, ok := s.RoundStatus(r.ID)
	require.True(t, ok)
	assert.Equal(t, TimerGame, kind)
}

func TestGameEventRecordedAndBroadcast(t *testing.T) {
	cfg := config.Config{
		MaxPlayersPerRoom: 4, PublicStartCount: 2,
		CountdownSeconds: 5, GameDurationSeconds: 60,
		RoomTTL: time.Hour,
	}
	s, reg, bc, pub, _ := sessionFixture(t, cfg)
	r, host, guest := playingRoom(t, s, reg)
	ctx := context.Background()

	err := s.HandleGameEvent(ctx, r.ID, uuid.New(), models.GameEvent{Type: models.EventFishCaught})
	assert.ErrorIs(t, err, room.ErrUserNotInRoom)

	err = s.HandleGameEvent(ctx, r.ID, guest, models.GameEvent{
		Type: models.EventFishCaught, TargetID: "fish-1", Score: 30,
	})
	require.NoError(t, err)

	evs := bc.byType(EvtGameEvent)
	require.Len(t, evs, 1)
	got := evs[0].Data.(models.GameEvent)
	assert.Equal(t, guest, got.UserID)
	assert.Equal(t, "guest", got.Nickname)

	// the event payload alone never moves scores
	cur, err := reg.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, cur.Players[cur.PlayerIndex(guest)].Score)

	_, err = s.EndByHost(ctx, r.ID, host)
	require.NoError(t, err)
	require.Len(t, pub.records, 1)
	for _, p := range pub.records[0].Players {
		if p.UserID == guest {
			require.Len(t, p.Events, 1)
			assert.Equal(t, "fish-1", p.Events[0].TargetID)
		}
	}
}

func TestScoreUpdateAndRanking(t *testing.T) {
	cfg := config.Config{
		MaxPlayersPerRoom: 4, PublicStartCount: 2,
		CountdownSeconds: 5, GameDurationSeconds: 60,
		RoomTTL: time.Hour,
	}
	s, reg, bc, pub, calls := sessionFixture(t, cfg)
	r, host, guest := playingRoom(t, s, reg)
	ctx := context.Background()

	require.NoError(t, s.UpdateScore(ctx, r.ID, host, 40))
	require.NoError(t, s.UpdateScore(ctx, r.ID, guest, 70))
	require.NoError(t, s.UpdateScore(ctx, r.ID, guest, -10))

	updates := bc.byType(EvtGameScoreUpdate)
	require.Len(t, updates, 3)
	last := updates[2].Data.(ScoreUpdateData)
	assert.Equal(t, 60, last.Score)
	assert.Equal(t, -10, last.Delta)

	record, err := s.EndByHost(ctx, r.ID, host)
	require.NoError(t, err)
	require.Len(t, record.Players, 2)
	assert.Equal(t, guest, record.Winner.UserID)
	assert.Equal(t, 1, record.Players[0].Rank)
	assert.Equal(t, 60, record.Players[0].Score)
	assert.Equal(t, 2, record.Players[1].Rank)

	require.Len(t, pub.records, 1)
	require.Len(t, *calls, 2)
	for _, c := range *calls {
		assert.Equal(t, c.userID == guest, c.won)
	}

	ends := bc.byType(EvtGameEnd)
	require.Len(t, ends, 1)
}

func TestTiesKeepJoinOrder(t *testing.T) {
	cfg := config.Config{
		MaxPlayersPerRoom: 4, PublicStartCount: 2,
		CountdownSeconds: 5, GameDurationSeconds: 60,
		RoomTTL: time.Hour,
	}
	s, reg, _, _, _ := sessionFixture(t, cfg)
	r, host, guest := playingRoom(t, s, reg)
	ctx := context.Background()

	require.NoError(t, s.UpdateScore(ctx, r.ID, host, 50))
	require.NoError(t, s.UpdateScore(ctx, r.ID, guest, 50))

	record, err := s.EndByHost(ctx, r.ID, host)
	require.NoError(t, err)
	assert.Equal(t, host, record.Winner.UserID)
	assert.Equal(t, guest, record.Players[1].UserID)
}

func TestEndByHostRequiresHost(t *testing.T) {
	cfg := config.Config{
		MaxPlayersPerRoom: 4, PublicStartCount: 2,
		CountdownSeconds: 5, GameDurationSeconds: 60,
		RoomTTL: time.Hour,
	}
	s, reg, _, _, _ := sessionFixture(t, cfg)
	r, host, guest := playingRoom(t, s, reg)
	ctx := context.Background()

	_, err := s.EndByHost(ctx, r.ID, guest)
	assert.ErrorIs(t, err, room.ErrNotHost)

	_, err = s.EndByHost(ctx, r.ID, host)
	require.NoError(t, err)

	// game timer is gone once the round is over
	_, _, ok := s.RoundStatus(r.ID)
	assert.False(t, ok)
}
