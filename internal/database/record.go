package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/harborfun/fisharena/internal/models"
)

// InsertGameRecord persists one finished game. Called by the recorder
// service, not the live game path.
func InsertGameRecord(ctx context.Context, rec *models.GameRecord) error {
	playersJSON, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("failed to encode player results: %w", err)
	}
	winnerJSON, err := json.Marshal(rec.Winner)
	if err != nil {
		return fmt.Errorf("failed to encode winner: %w", err)
	}
	q := `
	INSERT INTO game_records (id, room_id, room_code, start_time, end_time, duration, players, winner)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			rec.ID, rec.RoomID, rec.RoomCode, rec.StartTime, rec.EndTime,
			rec.Duration, playersJSON, winnerJSON,
		)
		return err
	})
}

func scanRecord(row pgx.Row) (*models.GameRecord, error) {
	var rec models.GameRecord
	var playersJSON, winnerJSON []byte
	err := row.Scan(
		&rec.ID, &rec.RoomID, &rec.RoomCode, &rec.StartTime, &rec.EndTime,
		&rec.Duration, &playersJSON, &winnerJSON,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(playersJSON, &rec.Players); err != nil {
		return nil, fmt.Errorf("failed to decode player results: %w", err)
	}
	if err := json.Unmarshal(winnerJSON, &rec.Winner); err != nil {
		return nil, fmt.Errorf("failed to decode winner: %w", err)
	}
	return &rec, nil
}

const recordColumns = `id, room_id, room_code, start_time, end_time, duration, players, winner`

// GetGameRecord returns (nil, nil) when no record exists for id.
func GetGameRecord(ctx context.Context, id uuid.UUID) (*models.GameRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM game_records WHERE id=$1`
	rec, err := scanRecord(DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListRecentRecords returns the user's most recent games, newest first.
func ListRecentRecords(ctx context.Context, userID uuid.UUID, limit int) ([]*models.GameRecord, error) {
	q := `
	SELECT ` + recordColumns + `
	FROM game_records
	WHERE players @> $1::jsonb
	ORDER BY end_time DESC
	LIMIT $2
	`
	member, _ := json.Marshal([]map[string]string{{"userId": userID.String()}})
	rows, err := DB.Query(ctx, q, member, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.GameRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountGamesAndWins returns how many games the user appears in and how many
// they won.
func CountGamesAndWins(ctx context.Context, userID uuid.UUID) (games, wins int, err error) {
	member, _ := json.Marshal([]map[string]string{{"userId": userID.String()}})
	q := `
	SELECT COUNT(1),
	       COUNT(1) FILTER (WHERE winner->>'userId' = $2)
	FROM game_records
	WHERE players @> $1::jsonb
	`
	err = DB.QueryRow(ctx, q, member, userID.String()).Scan(&games, &wins)
	return games, wins, err
}
