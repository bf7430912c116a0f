// internal/ws/handler_test.go
package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborfun/fisharena/internal/config"
	"github.com/harborfun/fisharena/internal/game"
	"github.com/harborfun/fisharena/internal/match"
	"github.com/harborfun/fisharena/internal/models"
	"github.com/harborfun/fisharena/internal/room"
)

func handlerFixture(t *testing.T) (*Handler, *room.Registry) {
	t.Helper()
	cfg := config.Config{
		MaxPlayersPerRoom:   4,
		PublicStartCount:    2,
		CountdownSeconds:    5,
		GameDurationSeconds: 60,
		ReadyTimeoutSeconds: 10,
		MatchTick:           time.Second,
		RoomTTL:             time.Hour,
	}
	reg := room.NewRegistry(room.NewMemStore(), room.NewMemLocker(), cfg)
	router := NewRouter()
	engine := game.NewEngine()
	session := game.NewSession(reg, engine, cfg, router, nil, nil)
	matcher := match.NewMatcher(match.NewMemQueue(), reg, engine, room.NewMemLocker(), router, cfg)

	reg.OnCountdown = func(id uuid.UUID) {
		matcher.CancelReadyWatchdog(id)
		session.StartCountdown(id)
	}
	reg.OnCountdownCancel = session.CancelCountdown
	reg.OnEmpty = func(id uuid.UUID) {
		session.OnRoomEmpty(id)
		router.UnbindAll(id)
	}

	h := &Handler{
		Router:  router,
		Reg:     reg,
		Session: session,
		Matcher: matcher,
		Logger:  logrus.New(),
	}
	return h, reg
}

func connect(h *Handler) *Conn {
	c, _ := newConn(uuid.New())
	h.Router.Register(c)
	return c
}

func send(t *testing.T, h *Handler, c *Conn, nickname, typ string, payload interface{}) error {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		data = raw
	}
	return h.dispatch(context.Background(), c, nickname, inbound{Type: typ, Data: data})
}

func TestJoinReadyStartFlow(t *testing.T) {
	h, reg := handlerFixture(t)
	ctx := context.Background()

	hostConn := connect(h)
	guestConn := connect(h)

	r, err := reg.CreateRoom(ctx, hostConn.UserID, models.Profile{Nickname: "host"}, models.RoomTypePrivate)
	require.NoError(t, err)
	h.Router.BindRoom(hostConn.UserID, r.ID)

	require.NoError(t, send(t, h, guestConn, "guest", "room:join", map[string]string{"roomCode": r.RoomCode}))

	// both members got the room:updated fan-out
	require.Len(t, drain(hostConn), 1)
	evs := drain(guestConn)
	require.Len(t, evs, 1)
	assert.Equal(t, game.EvtRoomUpdated, evs[0].Type)

	require.NoError(t, send(t, h, guestConn, "guest", "room:ready", map[string]bool{"ready": true}))
	require.NoError(t, send(t, h, hostConn, "host", "game:start", nil))

	cur, err := reg.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomPlaying, cur.Status)

	// game:start broadcast reached the room
	var sawStart bool
	for _, ev := range drain(guestConn) {
		if ev.Type == game.EvtGameStart {
			sawStart = true
		}
	}
	assert.True(t, sawStart)
}

func TestHostOnlyMessagesRejected(t *testing.T) {
	h, reg := handlerFixture(t)
	ctx := context.Background()

	hostConn := connect(h)
	guestConn := connect(h)

	r, err := reg.CreateRoom(ctx, hostConn.UserID, models.Profile{Nickname: "host"}, models.RoomTypePrivate)
	require.NoError(t, err)
	h.Router.BindRoom(hostConn.UserID, r.ID)
	require.NoError(t, send(t, h, guestConn, "guest", "room:join", map[string]string{"roomCode": r.RoomCode}))
	require.NoError(t, send(t, h, guestConn, "guest", "room:ready", map[string]bool{"ready": true}))
	require.NoError(t, send(t, h, hostConn, "host", "game:start", nil))
	drain(hostConn)
	drain(guestConn)

	err = send(t, h, guestConn, "guest", "fish:spawn", models.FishSpawn{Fishes: []models.Fish{{ID: "f1"}}})
	assert.ErrorIs(t, err, room.ErrNotHost)

	require.NoError(t, send(t, h, hostConn, "host", "fish:spawn", models.FishSpawn{Fishes: []models.Fish{{ID: "f1"}}}))
	var sawSpawn bool
	for _, ev := range drain(guestConn) {
		if ev.Type == game.EvtFishSpawn {
			sawSpawn = true
		}
	}
	assert.True(t, sawSpawn)
}

func TestFishCollisionCreditsScore(t *testing.T) {
	h, reg := handlerFixture(t)
	ctx := context.Background()

	hostConn := connect(h)
	guestConn := connect(h)

	r, err := reg.CreateRoom(ctx, hostConn.UserID, models.Profile{Nickname: "host"}, models.RoomTypePrivate)
	require.NoError(t, err)
	h.Router.BindRoom(hostConn.UserID, r.ID)
	require.NoError(t, send(t, h, guestConn, "guest", "room:join", map[string]string{"roomCode": r.RoomCode}))
	require.NoError(t, send(t, h, guestConn, "guest", "room:ready", map[string]bool{"ready": true}))
	require.NoError(t, send(t, h, hostConn, "host", "game:start", nil))

	col := models.FishCollision{FishID: "f1", UserID: guestConn.UserID, Score: 40}
	require.NoError(t, send(t, h, hostConn, "host", "fish:collision", col))

	cur, err := reg.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, cur.Players[cur.PlayerIndex(guestConn.UserID)].Score)
}

func TestMatchFlowOverDispatch(t *testing.T) {
	h, _ := handlerFixture(t)

	conns := []*Conn{connect(h), connect(h), connect(h), connect(h)}
	names := []string{"a", "b", "c", "d"}
	for i, c := range conns {
		require.NoError(t, send(t, h, c, names[i], "match:start", nil))
	}
	require.NoError(t, h.Matcher.Tick(context.Background()))

	// everyone got match:success with the room attached
	var roomID uuid.UUID
	for _, c := range conns {
		var saw bool
		for _, ev := range drain(c) {
			if ev.Type == game.EvtMatchSuccess {
				saw = true
				roomID = ev.Data.(game.MatchSuccessData).Room.ID
			}
		}
		require.True(t, saw)
	}

	// all non-host players confirm; room flips to countdown
	for _, c := range conns[1:] {
		require.NoError(t, send(t, h, c, "guest", "match:confirm", nil))
	}
	cur, err := h.Reg.GetRoom(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, models.RoomCountdown, cur.Status)
	h.Session.CancelCountdown(roomID)
}

func TestUnknownTypeAndStatus(t *testing.T) {
	h, reg := handlerFixture(t)
	ctx := context.Background()

	c := connect(h)
	err := send(t, h, c, "solo", "nonsense", nil)
	require.Error(t, err)

	_, err = reg.CreateRoom(ctx, c.UserID, models.Profile{Nickname: "solo"}, models.RoomTypePrivate)
	require.NoError(t, err)

	require.NoError(t, send(t, h, c, "solo", "status", nil))
	evs := drain(c)
	require.Len(t, evs, 1)
	require.Equal(t, game.EvtStatus, evs[0].Type)
	data := evs[0].Data.(game.StatusData)
	require.NotNil(t, data.Room)
	assert.False(t, data.InQueue)
}

func TestStatusWhileQueuedListsWaitingLine(t *testing.T) {
	h, _ := handlerFixture(t)

	a := connect(h)
	b := connect(h)
	require.NoError(t, send(t, h, a, "a", "match:start", nil))
	require.NoError(t, send(t, h, b, "b", "match:start", nil))

	require.NoError(t, send(t, h, a, "a", "status", nil))
	var status *game.StatusData
	for _, ev := range drain(a) {
		if ev.Type == game.EvtStatus {
			d := ev.Data.(game.StatusData)
			status = &d
		}
	}
	require.NotNil(t, status)
	assert.True(t, status.InQueue)
	require.Len(t, status.Queue, 2)
	assert.Equal(t, a.UserID, status.Queue[0].UserID)
	assert.Equal(t, b.UserID, status.Queue[1].UserID)
}

func TestDisconnectLeavesRoomAndQueue(t *testing.T) {
	h, reg := handlerFixture(t)
	ctx := context.Background()

	hostConn := connect(h)
	guestConn := connect(h)

	r, err := reg.CreateRoom(ctx, hostConn.UserID, models.Profile{Nickname: "host"}, models.RoomTypePrivate)
	require.NoError(t, err)
	h.Router.BindRoom(hostConn.UserID, r.ID)
	require.NoError(t, send(t, h, guestConn, "guest", "room:join", map[string]string{"roomCode": r.RoomCode}))
	drain(hostConn)

	require.True(t, h.Router.Unregister(guestConn))
	h.disconnect(guestConn.UserID)

	cur, err := reg.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Len(t, cur.Players, 1)

	// remaining member heard about it
	evs := drain(hostConn)
	require.NotEmpty(t, evs)
	assert.Equal(t, game.EvtRoomUpdated, evs[len(evs)-1].Type)
}
