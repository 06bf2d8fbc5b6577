package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telegram-bingo/internal/model"
)

// CardRepository handles issued bingo cards.
type CardRepository struct {
	pool *pgxpool.Pool
}

// NewCardRepository creates a new CardRepository instance.
func NewCardRepository(pool *pgxpool.Pool) *CardRepository {
	return &CardRepository{pool: pool}
}

// CreateCard stores card. The (room_id, player_id) unique constraint makes
// issuing at-most-once.
func (r *CardRepository) CreateCard(ctx context.Context, card *model.BingoCard) error {
	const query = `
		INSERT INTO bingo_cards (id, room_id, player_id, columns, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query, card.ID, card.RoomID, card.PlayerID, card.Columns, card.CreatedAt)
	if err != nil {
		switch pgErrorCode(err) {
		case pgUniqueViolation:
			return ErrCardExists
		case pgForeignKeyViolation:
			return ErrRoomNotFound
		}
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// GetCard retrieves the card a player holds in a room.
func (r *CardRepository) GetCard(ctx context.Context, roomID, playerID string) (*model.BingoCard, error) {
	const query = `
		SELECT id, room_id, player_id, columns, created_at
		FROM bingo_cards
		WHERE room_id = $1 AND player_id = $2
	`

	var card model.BingoCard
	err := r.pool.QueryRow(ctx, query, roomID, playerID).Scan(
		&card.ID,
		&card.RoomID,
		&card.PlayerID,
		&card.Columns,
		&card.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return &card, nil
}
