package models

import (
	"time"

	"github.com/google/uuid"
)

// RoomType distinguishes matchable public rooms from invite-code rooms.
type RoomType string

const (
	RoomTypePublic  RoomType = "public"
	RoomTypePrivate RoomType = "private"
)

// RoomStatus is the room lifecycle state. Transitions are enforced by the
// room registry: waiting -> countdown -> playing -> finished -> waiting,
// with countdown -> waiting as the only back-edge.
type RoomStatus string

const (
	RoomWaiting   RoomStatus = "waiting"
	RoomCountdown RoomStatus = "countdown"
	RoomPlaying   RoomStatus = "playing"
	RoomFinished  RoomStatus = "finished"
)

// Player is a participant's in-room state, embedded in Room.
type Player struct {
	UserID      uuid.UUID `json:"userId"`
	Nickname    string    `json:"nickname"`
	AvatarURL   string    `json:"avatarUrl"`
	Score       int       `json:"score"`
	IsReady     bool      `json:"isReady"`
	IsHost      bool      `json:"isHost"`
	PositionID  int       `json:"positionId,omitempty"`
	Orientation string    `json:"orientation,omitempty"`
	Side        string    `json:"side,omitempty"`
	WeaponType  int       `json:"weaponType,omitempty"`
}

// Room is one game session container. Player order is join order; position
// assignment happens separately at game start.
type Room struct {
	ID           uuid.UUID  `json:"id"`
	RoomCode     string     `json:"roomCode"`
	Type         RoomType   `json:"type"`
	Status       RoomStatus `json:"status"`
	HostID       uuid.UUID  `json:"hostId"`
	Players      []Player   `json:"players"`
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	CurrentRound int        `json:"currentRound"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
}

// PlayerIndex returns the index of userID in Players, or -1.
func (r *Room) PlayerIndex(userID uuid.UUID) int {
	for i := range r.Players {
		if r.Players[i].UserID == userID {
			return i
		}
	}
	return -1
}

// HostPlayer returns the player flagged as host, or nil.
func (r *Room) HostPlayer() *Player {
	for i := range r.Players {
		if r.Players[i].IsHost {
			return &r.Players[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand rooms across goroutines
// without sharing the players slice.
func (r *Room) Clone() *Room {
	cp := *r
	cp.Players = make([]Player, len(r.Players))
	copy(cp.Players, r.Players)
	return &cp
}

// RoomListItem is the summary shape returned by the public room listing.
type RoomListItem struct {
	ID          uuid.UUID  `json:"id"`
	RoomCode    string     `json:"roomCode"`
	Type        RoomType   `json:"type"`
	Status      RoomStatus `json:"status"`
	PlayerCount int        `json:"playerCount"`
	HostName    string     `json:"hostName"`
	CreatedAt   time.Time  `json:"createdAt"`
}
