package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the profile document owned by the external identity/stats
// collaborator. The session core only reads profile fields and increments
// lifetime stats through database.UpdateGameStats.
type User struct {
	ID          uuid.UUID `json:"id"`
	OpenID      string    `json:"openId"`
	Nickname    string    `json:"nickname"`
	AvatarURL   string    `json:"avatarUrl"`
	TotalScore  int       `json:"totalScore"`
	GamesPlayed int       `json:"gamesPlayed"`
	Wins        int       `json:"wins"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Profile is the subset of User that rooms and the matchmaking queue carry.
type Profile struct {
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

// MatchingPlayer is one matchmaking queue entry.
type MatchingPlayer struct {
	UserID    uuid.UUID `json:"userId"`
	Nickname  string    `json:"nickname"`
	AvatarURL string    `json:"avatarUrl"`
	QueuedAt  time.Time `json:"queuedAt"`
}
