// internal/ws/router.go
package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/harborfun/fisharena/internal/game"
)

const outChanSize = 32

// Conn is one user's active websocket connection. Outgoing events go
// through OutChan and a dedicated write pump; Send never blocks.
type Conn struct {
	UserID  uuid.UUID
	OutChan chan game.Event
	Cancel  context.CancelFunc
}

// Send queues an event for the write pump. When the buffer is full the
// event is dropped and logged; a client that slow is about to be reaped by
// ping timeout anyway.
func (c *Conn) Send(ev game.Event) {
	select {
	case c.OutChan <- ev:
	default:
		logrus.Warnf("user %s: send buffer full, dropping %s", c.UserID, ev.Type)
	}
}

// Router tracks who is connected and which room they sit in, and fans
// events out accordingly. It implements game.Broadcaster.
type Router struct {
	mu      sync.Mutex
	conns   map[uuid.UUID]*Conn       // userID -> connection
	rooms   map[uuid.UUID]uuid.UUID   // userID -> roomID
	members map[uuid.UUID][]uuid.UUID // roomID -> userIDs, join order
}

func NewRouter() *Router {
	return &Router{
		conns:   make(map[uuid.UUID]*Conn),
		rooms:   make(map[uuid.UUID]uuid.UUID),
		members: make(map[uuid.UUID][]uuid.UUID),
	}
}

// Register installs a user's connection. A previous connection for the same
// user is kicked; the room binding survives the swap so reconnects land
// back in their room.
func (r *Router) Register(conn *Conn) {
	r.mu.Lock()
	old, had := r.conns[conn.UserID]
	r.conns[conn.UserID] = conn
	r.mu.Unlock()
	if had {
		logrus.Infof("user %s reconnected, closing previous connection", conn.UserID)
		old.Cancel()
	}
}

// Unregister removes the connection if it is still the current one, so a
// stale connection's cleanup cannot kick its replacement.
func (r *Router) Unregister(conn *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.conns[conn.UserID]; !ok || cur != conn {
		return false
	}
	delete(r.conns, conn.UserID)
	return true
}

// BindRoom records that a user now sits in roomID.
func (r *Router) BindRoom(userID, roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.rooms[userID]; ok {
		r.removeMemberLocked(prev, userID)
	}
	r.rooms[userID] = roomID
	r.members[roomID] = append(r.members[roomID], userID)
}

// UnbindRoom clears a user's room binding.
func (r *Router) UnbindRoom(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if roomID, ok := r.rooms[userID]; ok {
		r.removeMemberLocked(roomID, userID)
		delete(r.rooms, userID)
	}
}

// UnbindAll drops every binding for a room, e.g. after it dissolved.
func (r *Router) UnbindAll(roomID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, userID := range r.members[roomID] {
		delete(r.rooms, userID)
	}
	delete(r.members, roomID)
}

func (r *Router) removeMemberLocked(roomID, userID uuid.UUID) {
	m := r.members[roomID]
	for i, id := range m {
		if id == userID {
			r.members[roomID] = append(m[:i], m[i+1:]...)
			break
		}
	}
	if len(r.members[roomID]) == 0 {
		delete(r.members, roomID)
	}
}

// RoomOf returns the room a user is bound to.
func (r *Router) RoomOf(userID uuid.UUID) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	roomID, ok := r.rooms[userID]
	return roomID, ok
}

// BroadcastRoom fans an event out to every connected member of a room.
func (r *Router) BroadcastRoom(roomID uuid.UUID, ev game.Event) {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.members[roomID]))
	for _, userID := range r.members[roomID] {
		if c, ok := r.conns[userID]; ok {
			conns = append(conns, c)
		}
	}
	r.mu.Unlock()
	for _, c := range conns {
		c.Send(ev)
	}
}

// SendUser delivers an event to one user if they are connected.
func (r *Router) SendUser(userID uuid.UUID, ev game.Event) {
	r.mu.Lock()
	c, ok := r.conns[userID]
	r.mu.Unlock()
	if ok {
		c.Send(ev)
	}
}

// Connected reports whether a user currently has a connection.
func (r *Router) Connected(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[userID]
	return ok
}
