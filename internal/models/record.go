package models

import (
	"time"

	"github.com/google/uuid"
)

// PlayerResult is one player's final line in a GameRecord. Rank 1 is the
// winner; score ties keep the original join order (stable sort).
type PlayerResult struct {
	UserID   uuid.UUID   `json:"userId"`
	Nickname string      `json:"nickname"`
	Score    int         `json:"score"`
	Rank     int         `json:"rank"`
	Events   []GameEvent `json:"events"`
}

// GameRecord is the immutable result of one finished game. It is published
// to the record queue at game end and persisted by the recorder service.
type GameRecord struct {
	ID        uuid.UUID      `json:"id"`
	RoomID    uuid.UUID      `json:"roomId"`
	RoomCode  string         `json:"roomCode"`
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Duration  int            `json:"duration"`
	Players   []PlayerResult `json:"players"`
	Winner    PlayerResult   `json:"winner"`
}

// PlayerGameRecords aggregates a user's recent games for the records API.
type PlayerGameRecords struct {
	UserID      uuid.UUID    `json:"userId"`
	Nickname    string       `json:"nickname"`
	TotalGames  int          `json:"totalGames"`
	Wins        int          `json:"wins"`
	AvgScore    int          `json:"avgScore"`
	TotalScore  int          `json:"totalScore"`
	BestScore   int          `json:"bestScore"`
	RecentGames []GameRecord `json:"recentGames"`
}
