// Package config centralizes the environment-driven settings of the
// fisharena server. Load .env files with godotenv/autoload in cmd binaries;
// this package only reads the process environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the tunables of the room, matchmaking, and timer subsystems.
type Config struct {
	// MaxPlayersPerRoom caps room membership and sets the matchmaking batch size.
	MaxPlayersPerRoom int
	// PublicStartCount is the player count at which a public room with all
	// players ready auto-enters countdown.
	PublicStartCount int
	// CountdownSeconds is the delay between a room entering countdown and
	// the game actually starting.
	CountdownSeconds int
	// GameDurationSeconds bounds one round.
	GameDurationSeconds int
	// ReadyTimeoutSeconds is the grace period matched players get to confirm.
	ReadyTimeoutSeconds int
	// MatchTick is the matchmaking batch interval.
	MatchTick time.Duration
	// RoomTTL is how long an abandoned room survives before the sweep
	// deletes it.
	RoomTTL time.Duration
}

// Load reads the config from environment variables, applying defaults for
// anything unset or unparsable.
func Load() Config {
	return Config{
		MaxPlayersPerRoom:   getEnvInt("MAX_PLAYERS_PER_ROOM", 4),
		PublicStartCount:    getEnvInt("PUBLIC_MATCH_START_PLAYER_COUNT", 2),
		CountdownSeconds:    getEnvInt("PUBLIC_MATCH_COUNTDOWN_SECONDS", 5),
		GameDurationSeconds: getEnvInt("GAME_DURATION_SECONDS", 60),
		ReadyTimeoutSeconds: getEnvInt("MATCH_READY_TIMEOUT_SECONDS", 10),
		MatchTick:           time.Duration(getEnvInt("MATCH_TICK_MS", 1000)) * time.Millisecond,
		RoomTTL:             time.Duration(getEnvInt("ROOM_TTL_SECONDS", 3600)) * time.Second,
	}
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
