// Package bingo implements the pure bingo rules: card generation, number
// draws and win-pattern evaluation. Nothing here touches storage.
package bingo

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"telegram-bingo/internal/model"
)

// ColumnRange is the count of numbers each column draws from.
const ColumnRange = 15

// Rand is the randomness source used for cards and draws.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// DefaultRand draws from the process-wide math/rand/v2 source.
var DefaultRand Rand = globalRand{}

// NewCard generates a card for playerID using DefaultRand.
func NewCard(playerID string) *model.BingoCard {
	return NewCardFrom(DefaultRand, playerID)
}

// NewCardFrom generates a card using r. Each column collects five distinct
// numbers from its range by rejection sampling, in draw order. The centre
// square is the pre-marked free space.
func NewCardFrom(r Rand, playerID string) *model.BingoCard {
	card := &model.BingoCard{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		CreatedAt: time.Now(),
	}

	for col := 0; col < model.CardSize; col++ {
		low := col*ColumnRange + 1
		seen := make(map[int]bool, model.CardSize)
		for row := 0; row < model.CardSize; {
			n := low + r.IntN(ColumnRange)
			if seen[n] {
				continue
			}
			seen[n] = true
			card.Columns[col][row] = model.BingoSquare{Number: n}
			row++
		}
	}

	card.Columns[model.FreeCol][model.FreeRow] = model.BingoSquare{Number: model.FreeSpace, Marked: true}
	return card
}

// ColumnBounds returns the inclusive number range of column col.
func ColumnBounds(col int) (low, high int) {
	low = col*ColumnRange + 1
	return low, low + ColumnRange - 1
}

// LetterFor returns the column letter for a called number, or "" when n is
// outside 1..75.
func LetterFor(n int) string {
	if n < 1 || n > model.MaxCallNumber {
		return ""
	}
	return model.ColumnLetters[(n-1)/ColumnRange]
}

// FormatCall renders a call as "B-7".
func FormatCall(n int) string {
	return fmt.Sprintf("%s-%d", LetterFor(n), n)
}

// ErrInvalidCard is returned by ValidateCard.
var ErrInvalidCard = errors.New("invalid bingo card")

// ValidateCard checks the card layout: five distinct in-range numbers per
// column and the free space in the centre.
func ValidateCard(card *model.BingoCard) error {
	if card == nil {
		return fmt.Errorf("%w: nil card", ErrInvalidCard)
	}
	for col := 0; col < model.CardSize; col++ {
		low, high := ColumnBounds(col)
		seen := make(map[int]bool, model.CardSize)
		for row := 0; row < model.CardSize; row++ {
			sq := card.At(row, col)
			if col == model.FreeCol && row == model.FreeRow {
				if sq.Number != model.FreeSpace || !sq.Marked {
					return fmt.Errorf("%w: centre must be the marked free space", ErrInvalidCard)
				}
				continue
			}
			if sq.Number < low || sq.Number > high {
				return fmt.Errorf("%w: %d out of range for column %s", ErrInvalidCard, sq.Number, model.ColumnLetters[col])
			}
			if seen[sq.Number] {
				return fmt.Errorf("%w: duplicate %d in column %s", ErrInvalidCard, sq.Number, model.ColumnLetters[col])
			}
			seen[sq.Number] = true
		}
	}
	return nil
}
