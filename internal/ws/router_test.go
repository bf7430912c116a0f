// internal/ws/router_test.go
package ws

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborfun/fisharena/internal/game"
)

func newConn(userID uuid.UUID) (*Conn, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{UserID: userID, OutChan: make(chan game.Event, outChanSize), Cancel: cancel}, ctx
}

func drain(c *Conn) []game.Event {
	var out []game.Event
	for {
		select {
		case ev := <-c.OutChan:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestBroadcastReachesOnlyRoomMembers(t *testing.T) {
	r := NewRouter()
	roomID := uuid.New()

	a, _ := newConn(uuid.New())
	b, _ := newConn(uuid.New())
	outsider, _ := newConn(uuid.New())
	for _, c := range []*Conn{a, b, outsider} {
		r.Register(c)
	}
	r.BindRoom(a.UserID, roomID)
	r.BindRoom(b.UserID, roomID)

	r.BroadcastRoom(roomID, game.GameTime(30))

	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
	assert.Empty(t, drain(outsider))
}

func TestRegisterReplacesPreviousConnection(t *testing.T) {
	r := NewRouter()
	userID := uuid.New()

	first, firstCtx := newConn(userID)
	r.Register(first)
	r.BindRoom(userID, uuid.New())

	second, _ := newConn(userID)
	r.Register(second)

	// the old connection's context is canceled
	select {
	case <-firstCtx.Done():
	default:
		t.Fatal("previous connection was not canceled")
	}

	// stale cleanup must not kick the replacement
	assert.False(t, r.Unregister(first))
	assert.True(t, r.Connected(userID))

	// room binding survives the swap
	_, bound := r.RoomOf(userID)
	assert.True(t, bound)

	assert.True(t, r.Unregister(second))
	assert.False(t, r.Connected(userID))
}

func TestUnbindAllClearsRoom(t *testing.T) {
	r := NewRouter()
	roomID := uuid.New()

	a, _ := newConn(uuid.New())
	b, _ := newConn(uuid.New())
	r.Register(a)
	r.Register(b)
	r.BindRoom(a.UserID, roomID)
	r.BindRoom(b.UserID, roomID)

	r.UnbindAll(roomID)
	_, bound := r.RoomOf(a.UserID)
	assert.False(t, bound)
	r.BroadcastRoom(roomID, game.GameTime(10))
	assert.Empty(t, drain(a))
	assert.Empty(t, drain(b))
}

func TestSendUserAndFullBufferDrop(t *testing.T) {
	r := NewRouter()
	c, _ := newConn(uuid.New())
	r.Register(c)

	r.SendUser(c.UserID, game.GameCountdown(3))
	evs := drain(c)
	require.Len(t, evs, 1)
	assert.Equal(t, game.EvtGameCountdown, evs[0].Type)

	// unknown user is a no-op
	r.SendUser(uuid.New(), game.GameCountdown(3))

	// fill the buffer; the overflow event is dropped, not blocking
	for i := 0; i < outChanSize+5; i++ {
		c.Send(game.GameTime(i))
	}
	assert.Len(t, drain(c), outChanSize)
}

func TestRebindMovesUserBetweenRooms(t *testing.T) {
	r := NewRouter()
	c, _ := newConn(uuid.New())
	r.Register(c)

	first := uuid.New()
	second := uuid.New()
	r.BindRoom(c.UserID, first)
	r.BindRoom(c.UserID, second)

	r.BroadcastRoom(first, game.GameTime(1))
	assert.Empty(t, drain(c))
	r.BroadcastRoom(second, game.GameTime(1))
	assert.Len(t, drain(c), 1)
}
