package bingo

import (
	"fmt"

	"github.com/shopspring/decimal"

	"telegram-bingo/internal/model"
)

// WinType groups patterns by shape.
type WinType string

// Win types.
const (
	WinLine        WinType = "line"
	WinFullHouse   WinType = "fullhouse"
	WinCorners     WinType = "corners"
	WinCenterCross WinType = "center_cross"
)

// Pattern names.
const (
	PatternDiagonalDown = `Diagonal (\)`
	PatternDiagonalUp   = "Diagonal (/)"
	PatternFourCorners  = "Four Corners"
	PatternCenterCross  = "Center Cross"
	PatternFullHouse    = "Full House"
	PatternEdge         = "Edge Pattern"
)

// Prize shares by pattern.
var (
	LinePercentage        = decimal.NewFromFloat(0.20)
	DiagonalPercentage    = decimal.NewFromFloat(0.25)
	CornersPercentage     = decimal.NewFromFloat(0.30)
	CenterCrossPercentage = decimal.NewFromFloat(0.35)
	FullHousePercentage   = decimal.NewFromInt(1)
	EdgePercentage        = decimal.NewFromFloat(0.40)
)

// WinResult is the outcome of evaluating a card.
type WinResult struct {
	HasWon     bool            `json:"hasWon"`
	Pattern    string          `json:"pattern,omitempty"`
	Type       WinType         `json:"winType,omitempty"`
	Percentage decimal.Decimal `json:"winPercentage"`
}

func won(pattern string, typ WinType, pct decimal.Decimal) WinResult {
	return WinResult{HasWon: true, Pattern: pattern, Type: typ, Percentage: pct}
}

// Evaluate reports the first pattern the card's marks satisfy. Patterns are
// checked in a fixed order and the first match wins regardless of payout:
// columns, rows, diagonals, four corners, center cross, full house, edge.
func Evaluate(card *model.BingoCard) WinResult {
	const n = model.CardSize
	m := card.IsMarked

	for col := 0; col < n; col++ {
		if all(func(i int) bool { return m(i, col) }) {
			return won(model.ColumnLetters[col]+" Column", WinLine, LinePercentage)
		}
	}

	for row := 0; row < n; row++ {
		if all(func(i int) bool { return m(row, i) }) {
			return won(fmt.Sprintf("Row %d", row+1), WinLine, LinePercentage)
		}
	}

	if all(func(i int) bool { return m(i, i) }) {
		return won(PatternDiagonalDown, WinLine, DiagonalPercentage)
	}
	if all(func(i int) bool { return m(n-1-i, i) }) {
		return won(PatternDiagonalUp, WinLine, DiagonalPercentage)
	}

	if m(0, 0) && m(0, n-1) && m(n-1, 0) && m(n-1, n-1) {
		return won(PatternFourCorners, WinCorners, CornersPercentage)
	}

	mid := n / 2
	if all(func(i int) bool { return m(i, mid) && m(mid, i) }) {
		return won(PatternCenterCross, WinCenterCross, CenterCrossPercentage)
	}

	if all(func(row int) bool { return all(func(col int) bool { return m(row, col) }) }) {
		return won(PatternFullHouse, WinFullHouse, FullHousePercentage)
	}

	if all(func(i int) bool { return m(0, i) && m(n-1, i) && m(i, 0) && m(i, n-1) }) {
		return won(PatternEdge, WinLine, EdgePercentage)
	}

	return WinResult{}
}

func all(pred func(i int) bool) bool {
	for i := 0; i < model.CardSize; i++ {
		if !pred(i) {
			return false
		}
	}
	return true
}
