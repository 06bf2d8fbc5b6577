package model

import "time"

// Card geometry.
const (
	CardSize  = 5
	FreeSpace = 0
	FreeRow   = 2
	FreeCol   = 2
)

// ColumnLetters labels the card columns left to right.
var ColumnLetters = [CardSize]string{"B", "I", "N", "G", "O"}

// BingoSquare is one cell of a card.
type BingoSquare struct {
	Number int  `json:"number"`
	Marked bool `json:"marked"`
	Called bool `json:"called"`
}

// BingoCard is a 5x5 card. Columns are indexed B..O, rows top to bottom.
type BingoCard struct {
	ID        string                          `json:"id"`
	RoomID    string                          `json:"roomId,omitempty"`
	PlayerID  string                          `json:"playerId"`
	Columns   [CardSize][CardSize]BingoSquare `json:"columns"`
	CreatedAt time.Time                       `json:"createdAt"`
}

// At returns the square at row, col.
func (c *BingoCard) At(row, col int) BingoSquare {
	return c.Columns[col][row]
}

// IsMarked reports whether the square at row, col is marked.
func (c *BingoCard) IsMarked(row, col int) bool {
	return c.Columns[col][row].Marked
}
