package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/harborfun/fisharena/internal/models"
)

// RoomStore persists rooms in Postgres, with the players list stored as a
// jsonb column so membership mutations stay a single-row write. It satisfies
// the room registry's Store interface.
type RoomStore struct{}

func NewRoomStore() *RoomStore { return &RoomStore{} }

const roomColumns = `id, room_code, type, status, host_id, players, start_time, end_time, current_round, created_at, expires_at`

func scanRoom(row pgx.Row) (*models.Room, error) {
	var r models.Room
	var playersJSON []byte
	err := row.Scan(
		&r.ID, &r.RoomCode, &r.Type, &r.Status, &r.HostID, &playersJSON,
		&r.StartTime, &r.EndTime, &r.CurrentRound, &r.CreatedAt, &r.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(playersJSON, &r.Players); err != nil {
		return nil, fmt.Errorf("failed to decode room players: %w", err)
	}
	return &r, nil
}

func (s *RoomStore) Insert(ctx context.Context, room *models.Room) error {
	playersJSON, err := json.Marshal(room.Players)
	if err != nil {
		return fmt.Errorf("failed to encode room players: %w", err)
	}
	q := `
	INSERT INTO rooms (id, room_code, type, status, host_id, players, start_time, end_time, current_round, created_at, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			room.ID, room.RoomCode, room.Type, room.Status, room.HostID, playersJSON,
			room.StartTime, room.EndTime, room.CurrentRound, room.CreatedAt, room.ExpiresAt,
		)
		return err
	})
}

func (s *RoomStore) Update(ctx context.Context, room *models.Room) error {
	playersJSON, err := json.Marshal(room.Players)
	if err != nil {
		return fmt.Errorf("failed to encode room players: %w", err)
	}
	q := `
	UPDATE rooms
	SET status=$1, host_id=$2, players=$3, start_time=$4, end_time=$5, current_round=$6, expires_at=$7
	WHERE id=$8
	`
	return pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q,
			room.Status, room.HostID, playersJSON,
			room.StartTime, room.EndTime, room.CurrentRound, room.ExpiresAt, room.ID,
		)
		return err
	})
}

func (s *RoomStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := DB.Exec(ctx, `DELETE FROM rooms WHERE id=$1`, id)
	return err
}

// FindByID returns (nil, nil) when the room does not exist.
func (s *RoomStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE id=$1`
	r, err := scanRoom(DB.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *RoomStore) FindByCode(ctx context.Context, code string) (*models.Room, error) {
	q := `SELECT ` + roomColumns + ` FROM rooms WHERE room_code=$1`
	r, err := scanRoom(DB.QueryRow(ctx, q, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// FindActiveByUser returns the non-finished room containing userID, if any.
func (s *RoomStore) FindActiveByUser(ctx context.Context, userID uuid.UUID) (*models.Room, error) {
	q := `
	SELECT ` + roomColumns + `
	FROM rooms
	WHERE status <> $1
	  AND players @> $2::jsonb
	LIMIT 1
	`
	member, _ := json.Marshal([]map[string]string{{"userId": userID.String()}})
	r, err := scanRoom(DB.QueryRow(ctx, q, models.RoomFinished, member))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// ListPublic returns public rooms whose status is one of the given set,
// oldest first.
func (s *RoomStore) ListPublic(ctx context.Context, statuses ...models.RoomStatus) ([]*models.Room, error) {
	q := `
	SELECT ` + roomColumns + `
	FROM rooms
	WHERE type=$1 AND status = ANY($2)
	ORDER BY created_at
	`
	set := make([]string, len(statuses))
	for i, st := range statuses {
		set[i] = string(st)
	}
	rows, err := DB.Query(ctx, q, models.RoomTypePublic, set)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []*models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (s *RoomStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := DB.QueryRow(ctx, `SELECT COUNT(1) FROM rooms WHERE room_code=$1`, code).Scan(&n)
	return n > 0, err
}

// DeleteExpired removes rooms whose TTL has elapsed and returns their ids
// so callers can tear down timers and socket bindings.
func (s *RoomStore) DeleteExpired(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := DB.Query(ctx, `DELETE FROM rooms WHERE expires_at < $1 RETURNING id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
