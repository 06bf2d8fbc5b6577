package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"telegram-bingo/internal/model"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

const roomColumns = `id, name, host_id, players, max_players, entry_fee, prize_pool, status,
	called_numbers, current_call, number_call_interval_ms, telegram_enabled, telegram_channel_id,
	last_call_time, game_started_at, game_ended_at, winner_id, win_pattern, win_amount,
	version, created_at, updated_at`

// RoomRepository handles game room persistence.
type RoomRepository struct {
	pool *pgxpool.Pool
}

// NewRoomRepository creates a new RoomRepository instance.
func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

func scanRoom(row pgx.Row) (*model.GameRoom, error) {
	var r model.GameRoom
	err := row.Scan(
		&r.ID,
		&r.Name,
		&r.HostID,
		&r.Players,
		&r.MaxPlayers,
		&r.EntryFee,
		&r.PrizePool,
		&r.Status,
		&r.CalledNumbers,
		&r.CurrentCall,
		&r.NumberCallIntervalMs,
		&r.TelegramEnabled,
		&r.TelegramChannelID,
		&r.LastCallTime,
		&r.GameStartedAt,
		&r.GameEndedAt,
		&r.WinnerID,
		&r.WinPattern,
		&r.WinAmount,
		&r.Version,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if r.Players == nil {
		r.Players = []model.Player{}
	}
	if r.CalledNumbers == nil {
		r.CalledNumbers = []int{}
	}
	return &r, nil
}

func nonNilPlayers(p []model.Player) []model.Player {
	if p == nil {
		return []model.Player{}
	}
	return p
}

func nonNilInts(n []int) []int {
	if n == nil {
		return []int{}
	}
	return n
}

// CreateRoom inserts a new room. Version starts at 1.
func (r *RoomRepository) CreateRoom(ctx context.Context, room *model.GameRoom) error {
	const query = `
		INSERT INTO game_rooms (
			id, name, host_id, players, max_players, entry_fee, prize_pool, status,
			called_numbers, current_call, number_call_interval_ms, telegram_enabled, telegram_channel_id,
			winner_id, win_pattern, win_amount, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, $17, $17)
	`

	now := time.Now()
	_, err := r.pool.Exec(ctx, query,
		room.ID,
		room.Name,
		room.HostID,
		nonNilPlayers(room.Players),
		room.MaxPlayers,
		room.EntryFee,
		room.PrizePool,
		string(room.Status),
		nonNilInts(room.CalledNumbers),
		room.CurrentCall,
		room.NumberCallIntervalMs,
		room.TelegramEnabled,
		room.TelegramChannelID,
		room.WinnerID,
		room.WinPattern,
		room.WinAmount,
		now,
	)
	if err != nil {
		if pgErrorCode(err) == pgUniqueViolation {
			return ErrRoomExists
		}
		return fmt.Errorf("failed to create room: %w", err)
	}

	room.Version = 1
	room.CreatedAt = now
	room.UpdatedAt = now
	return nil
}

// GetRoom retrieves a room by ID.
// Returns ErrRoomNotFound if the room does not exist.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (*model.GameRoom, error) {
	query := `SELECT ` + roomColumns + ` FROM game_rooms WHERE id = $1`

	room, err := scanRoom(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return room, nil
}

// UpdateRoom applies fn with compare-and-swap on the version column.
func (r *RoomRepository) UpdateRoom(ctx context.Context, id string, fn RoomMutator) (*model.GameRoom, error) {
	const query = `
		UPDATE game_rooms SET
			name = $3, players = $4, max_players = $5, entry_fee = $6, prize_pool = $7, status = $8,
			called_numbers = $9, current_call = $10, number_call_interval_ms = $11,
			telegram_enabled = $12, telegram_channel_id = $13, last_call_time = $14,
			game_started_at = $15, game_ended_at = $16, winner_id = $17, win_pattern = $18,
			win_amount = $19, version = version + 1, updated_at = $20
		WHERE id = $1 AND version = $2
	`

	for attempt := 1; attempt <= MaxUpdateAttempts; attempt++ {
		current, err := r.GetRoom(ctx, id)
		if err != nil {
			return nil, err
		}

		next := current.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		next.ID = current.ID
		next.HostID = current.HostID
		next.CreatedAt = current.CreatedAt
		next.Version = current.Version + 1
		next.UpdatedAt = time.Now()

		tag, err := r.pool.Exec(ctx, query,
			id,
			current.Version,
			next.Name,
			nonNilPlayers(next.Players),
			next.MaxPlayers,
			next.EntryFee,
			next.PrizePool,
			string(next.Status),
			nonNilInts(next.CalledNumbers),
			next.CurrentCall,
			next.NumberCallIntervalMs,
			next.TelegramEnabled,
			next.TelegramChannelID,
			next.LastCallTime,
			next.GameStartedAt,
			next.GameEndedAt,
			next.WinnerID,
			next.WinPattern,
			next.WinAmount,
			next.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to update room: %w", err)
		}
		if tag.RowsAffected() == 1 {
			return next, nil
		}

		log.Debug().
			Str("room_id", id).
			Int64("version", current.Version).
			Int("attempt", attempt).
			Msg("Room version conflict, retrying")
	}

	return nil, ErrVersionConflict
}

// ListRooms retrieves rooms in the given statuses, newest first. A limit of
// zero or less returns every match.
func (r *RoomRepository) ListRooms(ctx context.Context, statuses []model.RoomStatus, limit int) ([]*model.GameRoom, error) {
	query := `SELECT ` + roomColumns + `
		FROM game_rooms
		WHERE status = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2`

	// LIMIT NULL is no limit.
	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, query, names, limitArg)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*model.GameRoom
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rooms: %w", err)
	}

	return rooms, nil
}

// CountRooms counts rooms in status created at or after since.
func (r *RoomRepository) CountRooms(ctx context.Context, status model.RoomStatus, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM game_rooms WHERE status = $1 AND created_at >= $2`

	var n int
	if err := r.pool.QueryRow(ctx, query, string(status), since).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rooms: %w", err)
	}
	return n, nil
}
