package models

import "github.com/google/uuid"

// GameEventType tags the in-round events reported by clients.
type GameEventType string

const (
	EventFishCaught GameEventType = "fish_caught"
	EventItemUsed   GameEventType = "item_used"
	EventSpecial    GameEventType = "special_event"
)

// GameEvent is one scoring-relevant in-round event. The server broadcasts
// these verbatim; score changes go through the separate score-update call.
type GameEvent struct {
	Type     GameEventType `json:"type"`
	TargetID string        `json:"targetId"`
	Score    int           `json:"score,omitempty"`
	X        float64       `json:"x,omitempty"`
	Y        float64       `json:"y,omitempty"`
	ItemID   string        `json:"itemId,omitempty"`
	UserID   uuid.UUID     `json:"userId,omitempty"`
	Nickname string        `json:"nickname,omitempty"`
}

// FishBehaviorType enumerates the host-simulated fish AI modes.
type FishBehaviorType string

const (
	FishNormal     FishBehaviorType = "normal"
	FishSchooling  FishBehaviorType = "schooling"
	FishEscape     FishBehaviorType = "escape"
	FishAggressive FishBehaviorType = "aggressive"
	FishZigzag     FishBehaviorType = "zigzag"
)

// PathPoint is one waypoint on a fish path, time in ms from spawn.
type PathPoint struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Time int     `json:"time"`
}

// BehaviorParams carries the optional knobs of a fish behavior. Which
// fields apply depends on the behavior type; unused fields stay zero.
type BehaviorParams struct {
	SpeedMultiplier float64 `json:"speedMultiplier,omitempty"`
	LeaderID        string  `json:"leaderId,omitempty"`
	Offset          *Point  `json:"offset,omitempty"`
	FollowDelay     int     `json:"followDelay,omitempty"`
	Direction       float64 `json:"direction,omitempty"`
	Duration        int     `json:"duration,omitempty"`
	TurnRate        float64 `json:"turnRate,omitempty"`
	TargetPlayerID  string  `json:"targetPlayerId,omitempty"`
	Amplitude       float64 `json:"amplitude,omitempty"`
	Frequency       float64 `json:"frequency,omitempty"`
}

// Point is a plain 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FishBehavior pairs a behavior type with its parameters.
type FishBehavior struct {
	Type   FishBehaviorType `json:"type"`
	Params BehaviorParams   `json:"params"`
}

// Fish describes one spawned fish as reported by the host client.
type Fish struct {
	ID       string       `json:"id"`
	Type     int          `json:"type"`
	Path     []PathPoint  `json:"path"`
	HP       int          `json:"hp"`
	Speed    float64      `json:"speed"`
	Behavior FishBehavior `json:"behavior"`
}

// FishSpawn is the host-only fish spawn announcement.
type FishSpawn struct {
	Fishes []Fish `json:"fishes"`
}

// FishBehaviorChange updates one fish's behavior mid-round, optionally
// replacing the remainder of its path.
type FishBehaviorChange struct {
	ID       string       `json:"id"`
	Behavior FishBehavior `json:"behavior"`
	NewPath  []PathPoint  `json:"newPath,omitempty"`
}

// FishUpdate is the host-only behavior update batch.
type FishUpdate struct {
	Fishes []FishBehaviorChange `json:"fishes"`
}

// BulletCollisionBehavior is what a bullet does after a confirmed hit.
type BulletCollisionBehavior string

const (
	BulletCancel   BulletCollisionBehavior = "cancel"
	BulletContinue BulletCollisionBehavior = "continue"
	BulletReflect  BulletCollisionBehavior = "reflect"
	BulletExplode  BulletCollisionBehavior = "explode"
)

// Shot is a player's shoot action, relayed to the room.
type Shot struct {
	BulletID   string    `json:"bulletId"`
	BulletType int       `json:"bulletType"`
	Origin     Point     `json:"origin"`
	Angle      float64   `json:"angle"`
	UserID     uuid.UUID `json:"userId,omitempty"`
}

// BulletCollision is a host-confirmed bullet/fish hit.
type BulletCollision struct {
	BulletID string                  `json:"bulletId"`
	FishID   string                  `json:"fishId"`
	Behavior BulletCollisionBehavior `json:"behavior"`
	Position Point                   `json:"position"`
}

// FishCollision is a host-confirmed fish kill with the credited shooter.
type FishCollision struct {
	FishID   string    `json:"fishId"`
	UserID   uuid.UUID `json:"userId"`
	Score    int       `json:"score"`
	Position Point     `json:"position"`
}

// PlayerInit announces a player's chosen loadout at round start.
type PlayerInit struct {
	UserID     uuid.UUID `json:"userId,omitempty"`
	WeaponType int       `json:"weaponType"`
}
