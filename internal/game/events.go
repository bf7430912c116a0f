// internal/game/events.go
package game

import (
	"github.com/google/uuid"

	"github.com/harborfun/fisharena/internal/models"
)

// Event is the envelope for everything pushed over a room's websocket
// connections. Type selects the payload shape in Data.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Event type names. Room and match events describe lifecycle; game events
// carry round state; the rest are host/player relays fanned out verbatim.
const (
	EvtRoomUpdated   = "room:updated"
	EvtRoomDissolved = "room:dissolved"

	EvtMatchSuccess        = "match:success"
	EvtMatchReadyCountdown = "match:ready_countdown"
	EvtMatchTimeout        = "match:timeout"
	EvtMatchCanceled       = "match:canceled"

	EvtGameCountdown   = "game:countdown"
	EvtGameStart       = "game:start"
	EvtGameTime        = "game:time"
	EvtGameEvent       = "game:event"
	EvtGameScoreUpdate = "game:score_update"
	EvtGameEnd         = "game:end"

	EvtPlayerInit      = "player:init"
	EvtPlayerShoot     = "player:shoot"
	EvtFishSpawn       = "fish:spawn"
	EvtFishUpdate      = "fish:update"
	EvtBulletCollision = "bullet:collision"
	EvtFishCollision   = "fish:collision"

	EvtHeartbeat = "heartbeat"
	EvtStatus    = "status"
	EvtAck       = "ack"
)

// StatusData answers a status query: the caller's room, if any, the active
// timer, and the waiting line while the caller is queued.
type StatusData struct {
	Room      *models.Room            `json:"room,omitempty"`
	InQueue   bool                    `json:"inQueue"`
	Queue     []models.MatchingPlayer `json:"queue,omitempty"`
	Timer     string                  `json:"timer,omitempty"`
	Remaining int                     `json:"remaining,omitempty"`
}

// AckData is the generic request acknowledgement, used mainly to report
// failures back to the sender.
type AckData struct {
	Of      string `json:"of,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CountdownData carries whole seconds remaining on a countdown.
type CountdownData struct {
	Remaining int `json:"remaining"`
}

// ScoreUpdateData is the broadcast after one player's score changes.
type ScoreUpdateData struct {
	UserID uuid.UUID `json:"userId"`
	Score  int       `json:"score"`
	Delta  int       `json:"delta"`
}

// MatchSuccessData tells a queued player which room the matcher placed them
// in and how long they have to confirm.
type MatchSuccessData struct {
	Room           *models.Room `json:"room"`
	ConfirmSeconds int          `json:"confirmSeconds"`
}

// MatchCanceledData explains why a tentative match fell apart. NotReadyIDs
// names the players who never confirmed, so clients can show who stalled.
type MatchCanceledData struct {
	Reason      string      `json:"reason"`
	NotReadyIDs []uuid.UUID `json:"notReadyIds,omitempty"`
}

func RoomUpdated(r *models.Room) Event {
	return Event{Type: EvtRoomUpdated, Data: r}
}

func RoomDissolved(roomID uuid.UUID) Event {
	return Event{Type: EvtRoomDissolved, Data: map[string]uuid.UUID{"roomId": roomID}}
}

func MatchSuccess(r *models.Room, confirmSeconds int) Event {
	return Event{Type: EvtMatchSuccess, Data: MatchSuccessData{Room: r, ConfirmSeconds: confirmSeconds}}
}

func MatchReadyCountdown(remaining int) Event {
	return Event{Type: EvtMatchReadyCountdown, Data: CountdownData{Remaining: remaining}}
}

func MatchTimeout() Event {
	return Event{Type: EvtMatchTimeout}
}

func MatchCanceled(reason string, notReady []uuid.UUID) Event {
	return Event{Type: EvtMatchCanceled, Data: MatchCanceledData{Reason: reason, NotReadyIDs: notReady}}
}

func GameCountdown(remaining int) Event {
	return Event{Type: EvtGameCountdown, Data: CountdownData{Remaining: remaining}}
}

func GameStart(r *models.Room) Event {
	return Event{Type: EvtGameStart, Data: r}
}

func GameTime(remaining int) Event {
	return Event{Type: EvtGameTime, Data: CountdownData{Remaining: remaining}}
}

func GameEventBroadcast(ev models.GameEvent) Event {
	return Event{Type: EvtGameEvent, Data: ev}
}

func ScoreUpdate(userID uuid.UUID, score, delta int) Event {
	return Event{Type: EvtGameScoreUpdate, Data: ScoreUpdateData{UserID: userID, Score: score, Delta: delta}}
}

func GameEnd(record *models.GameRecord) Event {
	return Event{Type: EvtGameEnd, Data: record}
}

func PlayerInitBroadcast(init models.PlayerInit) Event {
	return Event{Type: EvtPlayerInit, Data: init}
}

func ShotBroadcast(shot models.Shot) Event {
	return Event{Type: EvtPlayerShoot, Data: shot}
}

func FishSpawnBroadcast(spawn models.FishSpawn) Event {
	return Event{Type: EvtFishSpawn, Data: spawn}
}

func FishUpdateBroadcast(update models.FishUpdate) Event {
	return Event{Type: EvtFishUpdate, Data: update}
}

func BulletCollisionBroadcast(col models.BulletCollision) Event {
	return Event{Type: EvtBulletCollision, Data: col}
}

func FishCollisionBroadcast(col models.FishCollision) Event {
	return Event{Type: EvtFishCollision, Data: col}
}

func Ack(of string, success bool, message string) Event {
	return Event{Type: EvtAck, Data: AckData{Of: of, Success: success, Message: message}}
}
