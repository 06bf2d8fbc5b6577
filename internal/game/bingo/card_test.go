package bingo

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"telegram-bingo/internal/model"
)

// TestNewCardProperty checks the layout of generated cards for arbitrary seeds.
func TestNewCardProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed1 := rapid.Uint64().Draw(rt, "seed1")
		seed2 := rapid.Uint64().Draw(rt, "seed2")
		r := rand.New(rand.NewPCG(seed1, seed2))

		card := NewCardFrom(r, "player-1")

		if err := ValidateCard(card); err != nil {
			rt.Fatalf("generated card is invalid: %v", err)
		}
		free := card.At(model.FreeRow, model.FreeCol)
		if free.Number != model.FreeSpace || !free.Marked {
			rt.Fatalf("centre square should be the marked free space, got %+v", free)
		}
		for col := 0; col < model.CardSize; col++ {
			for row := 0; row < model.CardSize; row++ {
				if row == model.FreeRow && col == model.FreeCol {
					continue
				}
				if card.IsMarked(row, col) {
					rt.Fatalf("square %d,%d should start unmarked", row, col)
				}
			}
		}
	})
}

func TestNewCardIDsDiffer(t *testing.T) {
	a := NewCard("p1")
	b := NewCard("p1")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "p1", a.PlayerID)
}

func TestNewCardDeterministicWithSeed(t *testing.T) {
	a := NewCardFrom(rand.New(rand.NewPCG(7, 7)), "p")
	b := NewCardFrom(rand.New(rand.NewPCG(7, 7)), "p")
	assert.Equal(t, a.Columns, b.Columns)
}

func TestValidateCardRejects(t *testing.T) {
	card := NewCardFrom(rand.New(rand.NewPCG(1, 2)), "p")

	dup := *card
	dup.Columns[0][1].Number = dup.Columns[0][0].Number
	assert.ErrorIs(t, ValidateCard(&dup), ErrInvalidCard)

	outOfRange := *card
	outOfRange.Columns[4][0].Number = 3
	assert.ErrorIs(t, ValidateCard(&outOfRange), ErrInvalidCard)

	noFree := *card
	noFree.Columns[model.FreeCol][model.FreeRow].Marked = false
	assert.ErrorIs(t, ValidateCard(&noFree), ErrInvalidCard)

	assert.ErrorIs(t, ValidateCard(nil), ErrInvalidCard)
	require.NoError(t, ValidateCard(card))
}

func TestLetterFor(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "B"}, {15, "B"}, {16, "I"}, {30, "I"}, {31, "N"}, {45, "N"},
		{46, "G"}, {60, "G"}, {61, "O"}, {75, "O"}, {0, ""}, {76, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LetterFor(tt.n), "number %d", tt.n)
	}
	assert.Equal(t, "G-52", FormatCall(52))
}
