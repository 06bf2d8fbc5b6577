package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"telegram-bingo/internal/game/bingo"
	"telegram-bingo/internal/model"
	"telegram-bingo/internal/repository"
)

// CardService issues at most one card per player per room.
type CardService struct {
	rooms repository.RoomStore
	cards repository.CardStore
	rand  bingo.Rand
}

// NewCardService creates a CardService.
func NewCardService(rooms repository.RoomStore, cards repository.CardStore) *CardService {
	return &CardService{rooms: rooms, cards: cards, rand: bingo.DefaultRand}
}

// SetRand replaces the card generator source.
func (s *CardService) SetRand(r bingo.Rand) {
	s.rand = r
}

// Issue returns the player's card in the room, generating it on first
// request. The returned card carries the marks derived from the room's
// calls so far.
func (s *CardService) Issue(ctx context.Context, roomID, playerID string) (*model.BingoCard, error) {
	room, err := s.room(ctx, roomID, playerID)
	if err != nil {
		return nil, err
	}

	card, err := s.cards.GetCard(ctx, roomID, playerID)
	switch {
	case err == nil:
		return bingo.ApplyCalls(card, room.CalledNumbers), nil
	case !errors.Is(err, repository.ErrCardNotFound):
		return nil, fmt.Errorf("failed to load card: %w", err)
	}

	card = bingo.NewCardFrom(s.rand, playerID)
	card.RoomID = roomID
	if err := s.cards.CreateCard(ctx, card); err != nil {
		if !errors.Is(err, repository.ErrCardExists) {
			return nil, fmt.Errorf("failed to store card: %w", err)
		}
		// Issued concurrently; hand out the stored one.
		if card, err = s.cards.GetCard(ctx, roomID, playerID); err != nil {
			return nil, fmt.Errorf("failed to load card: %w", err)
		}
	} else {
		log.Debug().
			Str("room_id", roomID).
			Str("player_id", playerID).
			Str("card_id", card.ID).
			Msg("Card issued")
	}
	return bingo.ApplyCalls(card, room.CalledNumbers), nil
}

// Get returns the player's issued card with marks derived from the room's
// calls.
func (s *CardService) Get(ctx context.Context, roomID, playerID string) (*model.BingoCard, error) {
	room, err := s.room(ctx, roomID, playerID)
	if err != nil {
		return nil, err
	}
	card, err := s.cards.GetCard(ctx, roomID, playerID)
	if err != nil {
		if errors.Is(err, repository.ErrCardNotFound) {
			return nil, ErrNoCard
		}
		return nil, fmt.Errorf("failed to load card: %w", err)
	}
	return bingo.ApplyCalls(card, room.CalledNumbers), nil
}

func (s *CardService) room(ctx context.Context, roomID, playerID string) (*model.GameRoom, error) {
	room, err := s.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}
	if !room.HasPlayer(playerID) {
		return nil, ErrNotInRoom
	}
	return room, nil
}
