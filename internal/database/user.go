package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/harborfun/fisharena/internal/models"
)

// UpsertUserByOpenID finds or creates a user for the given external
// identity, refreshing nickname/avatar when provided.
func UpsertUserByOpenID(ctx context.Context, openID, nickname, avatarURL string) (*models.User, error) {
	u, err := GetUserByOpenID(ctx, openID)
	if err != nil {
		return nil, err
	}
	if u != nil {
		if nickname != "" || avatarURL != "" {
			q := `UPDATE users SET nickname = COALESCE(NULLIF($1, ''), nickname),
			                       avatar_url = COALESCE(NULLIF($2, ''), avatar_url)
			      WHERE id = $3`
			if _, err := DB.Exec(ctx, q, nickname, avatarURL, u.ID); err != nil {
				return nil, fmt.Errorf("failed to refresh user profile: %w", err)
			}
			if nickname != "" {
				u.Nickname = nickname
			}
			if avatarURL != "" {
				u.AvatarURL = avatarURL
			}
		}
		return u, nil
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user id: %w", err)
	}
	if nickname == "" {
		nickname = fmt.Sprintf("Player_%s", id.String()[:4])
	}

	user := &models.User{ID: id, OpenID: openID, Nickname: nickname, AvatarURL: avatarURL}
	q := `INSERT INTO users (id, open_id, nickname, avatar_url, total_score, games_played, wins)
	      VALUES ($1, $2, $3, $4, 0, 0, 0)`
	err = pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, execErr := tx.Exec(ctx, q, user.ID, user.OpenID, user.Nickname, user.AvatarURL)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetUserByID returns (nil, nil) when no such user exists.
func GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, open_id, nickname, avatar_url, total_score, games_played, wins, created_at
	FROM users
	WHERE id=$1
	`
	err := DB.QueryRow(ctx, q, id).Scan(
		&u.ID, &u.OpenID, &u.Nickname, &u.AvatarURL,
		&u.TotalScore, &u.GamesPlayed, &u.Wins, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByOpenID returns (nil, nil) when no such user exists.
func GetUserByOpenID(ctx context.Context, openID string) (*models.User, error) {
	var u models.User
	q := `
	SELECT id, open_id, nickname, avatar_url, total_score, games_played, wins, created_at
	FROM users
	WHERE open_id=$1
	`
	err := DB.QueryRow(ctx, q, openID).Scan(
		&u.ID, &u.OpenID, &u.Nickname, &u.AvatarURL,
		&u.TotalScore, &u.GamesPlayed, &u.Wins, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UpdateGameStats increments a player's lifetime counters after a finished
// game: one more game played, score added, and a win when ranked first.
func UpdateGameStats(ctx context.Context, userID uuid.UUID, score int, won bool) error {
	winInc := 0
	if won {
		winInc = 1
	}
	q := `
	UPDATE users
	SET games_played = games_played + 1,
	    total_score = total_score + $1,
	    wins = wins + $2
	WHERE id = $3
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, score, winInc, userID)
		return err
	})
}
