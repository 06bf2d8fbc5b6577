package bingo

import (
	"math/rand/v2"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"telegram-bingo/internal/model"
)

type cell struct{ row, col int }

// markedCard returns a fresh card with only the free space and cells marked.
func markedCard(cells ...cell) *model.BingoCard {
	card := NewCardFrom(rand.New(rand.NewPCG(42, 42)), "p")
	for _, c := range cells {
		card.Columns[c.col][c.row].Marked = true
	}
	return card
}

func rowCells(row int) []cell {
	out := make([]cell, 0, model.CardSize)
	for col := 0; col < model.CardSize; col++ {
		out = append(out, cell{row, col})
	}
	return out
}

func colCells(col int) []cell {
	out := make([]cell, 0, model.CardSize)
	for row := 0; row < model.CardSize; row++ {
		out = append(out, cell{row, col})
	}
	return out
}

func TestEvaluatePatterns(t *testing.T) {
	corners := []cell{{0, 0}, {0, 4}, {4, 0}, {4, 4}}

	tests := []struct {
		name    string
		cells   []cell
		pattern string
		typ     WinType
		pct     string
	}{
		{"B column", colCells(0), "B Column", WinLine, "0.2"},
		{"O column", colCells(4), "O Column", WinLine, "0.2"},
		{"N column through free space", []cell{{0, 2}, {1, 2}, {3, 2}, {4, 2}}, "N Column", WinLine, "0.2"},
		{"first row", rowCells(0), "Row 1", WinLine, "0.2"},
		{"middle row through free space", []cell{{2, 0}, {2, 1}, {2, 3}, {2, 4}}, "Row 3", WinLine, "0.2"},
		{"falling diagonal", []cell{{0, 0}, {1, 1}, {3, 3}, {4, 4}}, PatternDiagonalDown, WinLine, "0.25"},
		{"rising diagonal", []cell{{4, 0}, {3, 1}, {1, 3}, {0, 4}}, PatternDiagonalUp, WinLine, "0.25"},
		{"four corners", corners, PatternFourCorners, WinCorners, "0.3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Evaluate(markedCard(tt.cells...))
			assert.True(t, res.HasWon)
			assert.Equal(t, tt.pattern, res.Pattern)
			assert.Equal(t, tt.typ, res.Type)
			assert.True(t, decimal.RequireFromString(tt.pct).Equal(res.Percentage), "got %s", res.Percentage)
		})
	}
}

func TestEvaluateNoWin(t *testing.T) {
	res := Evaluate(markedCard(cell{0, 0}, cell{0, 1}, cell{0, 2}, cell{0, 3}, cell{1, 1}))
	assert.False(t, res.HasWon)
	assert.Empty(t, res.Pattern)
	assert.True(t, res.Percentage.IsZero())
}

func TestEvaluateRowBeatsCorners(t *testing.T) {
	cells := append(rowCells(0), cell{4, 0}, cell{4, 4})
	res := Evaluate(markedCard(cells...))

	assert.Equal(t, "Row 1", res.Pattern)
	assert.True(t, LinePercentage.Equal(res.Percentage))
}

func TestEvaluateFixedPriorityOverPayout(t *testing.T) {
	// A full card satisfies every pattern; the first column is reported.
	var all []cell
	for row := 0; row < model.CardSize; row++ {
		all = append(all, rowCells(row)...)
	}
	res := Evaluate(markedCard(all...))
	assert.Equal(t, "B Column", res.Pattern)
	assert.True(t, LinePercentage.Equal(res.Percentage))

	// The center cross contains the N column, which is checked earlier.
	cross := append(colCells(2), rowCells(2)...)
	res = Evaluate(markedCard(cross...))
	assert.Equal(t, "N Column", res.Pattern)

	// Corners plus a diagonal reports the diagonal.
	res = Evaluate(markedCard(cell{0, 0}, cell{0, 4}, cell{4, 0}, cell{4, 4}, cell{1, 1}, cell{3, 3}))
	assert.Equal(t, PatternDiagonalDown, res.Pattern)
}

// TestEvaluateDeterministicProperty evaluates random markings twice.
func TestEvaluateDeterministicProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		var cells []cell
		for row := 0; row < model.CardSize; row++ {
			for col := 0; col < model.CardSize; col++ {
				if rapid.Bool().Draw(rt, "mark") {
					cells = append(cells, cell{row, col})
				}
			}
		}
		card := markedCard(cells...)
		first := Evaluate(card)
		second := Evaluate(card)
		if first.HasWon != second.HasWon || first.Pattern != second.Pattern || !first.Percentage.Equal(second.Percentage) {
			rt.Fatalf("evaluation not deterministic: %+v vs %+v", first, second)
		}
		if first.HasWon && first.Percentage.GreaterThan(decimal.NewFromInt(1)) {
			rt.Fatalf("percentage above 1: %s", first.Percentage)
		}
	})
}
