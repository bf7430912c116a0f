// internal/match/matcher_test.go
package match

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/game"
	"github.com/harborfun/fisharena/internal/models"
	"github.com/harborfun/fisharena/internal/room"
)

type sentEvent struct {
	userID uuid.UUID
	ev     game.Event
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentEvent
}

func (f *fakeNotifier) BroadcastRoom(roomID uuid.UUID, ev game.Event) {}

func (f *fakeNotifier) SendUser(userID uuid.UUID, ev game.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{userID: userID, ev: ev})
}

func (f *fakeNotifier) sentTo(userID uuid.UUID, typ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.userID == userID && s.ev.Type == typ {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) lastTo(userID uuid.UUID, typ string) (game.Event, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].userID == userID && f.sent[i].ev.Type == typ {
			return f.sent[i].ev, true
		}
	}
	return game.Event{}, false
}

func matchConfig(readyTimeout int) config.Config {
	return config.Config{
		MaxPlayersPerRoom:   4,
		PublicStartCount:    2,
		CountdownSeconds:    5,
		GameDurationSeconds: 60,
		ReadyTimeoutSeconds: readyTimeout,
		MatchTick:           time.Second,
		RoomTTL:             time.Hour,
	}
}

func matcherFixture(readyTimeout int) (*Matcher, *room.Registry, *MemQueue, *room.MemLocker, *fakeNotifier, *game.Engine) {
	cfg := matchConfig(readyTimeout)
	reg := room.NewRegistry(room.NewMemStore(), room.NewMemLocker(), cfg)
	queue := NewMemQueue()
	locks := room.NewMemLocker()
	bc := &fakeNotifier{}
	engine := game.NewEngine()
	m := NewMatcher(queue, reg, engine, locks, bc, cfg)
	reg.OnCountdown = m.CancelReadyWatchdog
	return m, reg, queue, locks, bc, engine
}

func queued(name string) models.MatchingPlayer {
	return models.MatchingPlayer{UserID: uuid.New(), Nickname: name, QueuedAt: time.Now()}
}

func enqueueAll(t *testing.T, m *Matcher, names ...string) []models.MatchingPlayer {
	t.Helper()
	ctx := context.Background()
	players := make([]models.MatchingPlayer, 0, len(names))
	for _, name := range names {
		p := queued(name)
		ok, err := m.Enqueue(ctx, p)
		require.NoError(t, err)
		require.True(t, ok)
		players = append(players, p)
	}
	return players
}

// A batch forms only once a full room's worth of players is waiting; three
// queued players against a capacity of four stay put.
func TestTickBelowCapacityDoesNothing(t *testing.T) {
	ctx := context.Background()
	m, _, queue, _, bc, _ := matcherFixture(10)

	enqueueAll(t, m, "a", "b", "c")

	require.NoError(t, m.Tick(ctx))
	n, _ := queue.Len(ctx)
	assert.Equal(t, 3, n)
	assert.Empty(t, bc.sent)
}

func TestTickFormsFullRoomFromBatch(t *testing.T) {
	ctx := context.Background()
	m, reg, queue, _, bc, engine := matcherFixture(10)

	players := enqueueAll(t, m, "first", "second", "third", "fourth")

	require.NoError(t, m.Tick(ctx))

	n, _ := queue.Len(ctx)
	assert.Equal(t, 0, n)

	// first in line hosts
	r, err := reg.RoomForUser(ctx, players[0].UserID)
	require.NoError(t, err)
	assert.Equal(t, players[0].UserID, r.HostID)
	assert.Equal(t, models.RoomTypePublic, r.Type)
	assert.Len(t, r.Players, 4)

	for _, p := range players {
		assert.Equal(t, 1, bc.sentTo(p.UserID, game.EvtMatchSuccess))
	}

	secs, running := engine.Remaining(r.ID, game.TimerReadyTimeout)
	require.True(t, running)
	assert.InDelta(t, 10, secs, 1)
}

func TestTickSkipsWhenLockHeldElsewhere(t *testing.T) {
	ctx := context.Background()
	m, _, queue, locks, bc, _ := matcherFixture(10)

	enqueueAll(t, m, "a", "b", "c", "d")

	held, err := locks.AcquireLock(ctx, batchLockKey, "other-instance", time.Minute)
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, m.Tick(ctx))
	n, _ := queue.Len(ctx)
	assert.Equal(t, 4, n)
	assert.Empty(t, bc.sent)
}

// Concurrent ticks over the same queue must never double-place anyone: the
// batch lock serializes them, so eight waiting players come out as exactly
// two full rooms.
func TestConcurrentTicksPlaceEachPlayerOnce(t *testing.T) {
	ctx := context.Background()
	m, reg, queue, _, bc, _ := matcherFixture(10)

	names := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		names = append(names, fmt.Sprintf("p%d", i))
	}
	players := enqueueAll(t, m, names...)

	for round := 0; round < 4; round++ {
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, m.Tick(ctx))
			}()
		}
		wg.Wait()
	}

	n, _ := queue.Len(ctx)
	assert.Equal(t, 0, n)

	rooms := make(map[uuid.UUID]int)
	for _, p := range players {
		r, err := reg.RoomForUser(ctx, p.UserID)
		require.NoError(t, err, "player %s was not placed", p.Nickname)
		rooms[r.ID]++
		assert.Equal(t, 1, bc.sentTo(p.UserID, game.EvtMatchSuccess))
		assert.Zero(t, bc.sentTo(p.UserID, game.EvtMatchCanceled))
	}
	require.Len(t, rooms, 2)
	for id, seats := range rooms {
		assert.Equal(t, 4, seats)
		r, err := reg.GetRoom(ctx, id)
		require.NoError(t, err)
		assert.Len(t, r.Players, 4)
	}
}

func TestListQueueKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m, _, _, _, _, _ := matcherFixture(10)

	players := enqueueAll(t, m, "a", "b", "c")

	list, err := m.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, p := range players {
		assert.Equal(t, p.UserID, list[i].UserID)
	}

	_, err = m.Dequeue(ctx, players[1].UserID)
	require.NoError(t, err)

	list, err = m.ListQueue(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, players[0].UserID, list[0].UserID)
	assert.Equal(t, players[2].UserID, list[1].UserID)
}

func TestConfirmReadyTripsCountdownAndStopsWatchdog(t *testing.T) {
	ctx := context.Background()
	m, reg, _, _, _, engine := matcherFixture(10)

	players := enqueueAll(t, m, "host", "g1", "g2", "g3")
	require.NoError(t, m.Tick(ctx))

	// first two confirmations leave the room waiting
	r, err := m.ConfirmReady(ctx, players[1].UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomWaiting, r.Status)
	r, err = m.ConfirmReady(ctx, players[2].UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomWaiting, r.Status)

	// the last guest tips the room into countdown
	r, err = m.ConfirmReady(ctx, players[3].UserID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomCountdown, r.Status)

	_, running := engine.Remaining(r.ID, game.TimerReadyTimeout)
	assert.False(t, running)

	cur, err := reg.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomCountdown, cur.Status)
}

func TestReadyTimeoutRequeuesConfirmedAndDropsRest(t *testing.T) {
	ctx := context.Background()
	m, reg, queue, _, bc, _ := matcherFixture(1)

	players := enqueueAll(t, m, "host", "eager", "idle1", "idle2")
	require.NoError(t, m.Tick(ctx))

	r, err := reg.RoomForUser(ctx, players[0].UserID)
	require.NoError(t, err)

	// one guest confirms, the other two let the watchdog run out
	_, err = m.ConfirmReady(ctx, players[1].UserID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, err := reg.GetRoom(ctx, r.ID)
		return room.IsNotFound(err)
	}, 4*time.Second, 50*time.Millisecond)

	// host (implicitly confirmed) and the eager guest go back to the head
	// of the line, the idle pair is dropped
	for _, p := range players[:2] {
		inQueue, err := m.InQueue(ctx, p.UserID)
		require.NoError(t, err)
		assert.True(t, inQueue)
		assert.Equal(t, 1, bc.sentTo(p.UserID, game.EvtMatchCanceled))
	}
	for _, p := range players[2:] {
		inQueue, err := m.InQueue(ctx, p.UserID)
		require.NoError(t, err)
		assert.False(t, inQueue)
		assert.Equal(t, 1, bc.sentTo(p.UserID, game.EvtMatchTimeout))
	}

	// the cancellation names exactly the players who never confirmed
	ev, ok := bc.lastTo(players[0].UserID, game.EvtMatchCanceled)
	require.True(t, ok)
	data, ok := ev.Data.(game.MatchCanceledData)
	require.True(t, ok)
	assert.ElementsMatch(t, []uuid.UUID{players[2].UserID, players[3].UserID}, data.NotReadyIDs)
	assert.NotEmpty(t, data.Reason)

	n, _ := queue.Len(ctx)
	assert.Equal(t, 2, n)
}

func TestEnqueueGuards(t *testing.T) {
	ctx := context.Background()
	m, reg, _, _, _, _ := matcherFixture(10)

	p := queued("dup")
	ok, err := m.Enqueue(ctx, p)
	require.NoError(t, err)
	assert.True(t, ok)

	// second enqueue of the same user is a no-op
	ok, err = m.Enqueue(ctx, p)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := m.Dequeue(ctx, p.UserID)
	require.NoError(t, err)
	assert.True(t, removed)

	// a seated player cannot queue
	seated := queued("seated")
	_, err = reg.CreateRoom(ctx, seated.UserID, models.Profile{Nickname: "seated"}, models.RoomTypePrivate)
	require.NoError(t, err)
	_, err = m.Enqueue(ctx, seated)
	assert.ErrorIs(t, err, room.ErrAlreadyInRoom)
}
