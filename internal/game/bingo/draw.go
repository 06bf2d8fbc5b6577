package bingo

import (
	"slices"

	"telegram-bingo/internal/model"
)

// DrawNext picks uniformly from the numbers in 1..75 not present in called.
// It returns false when every number has been called.
func DrawNext(r Rand, called []int) (int, bool) {
	room := model.GameRoom{CalledNumbers: called}
	remaining := room.Remaining()
	if len(remaining) == 0 {
		return 0, false
	}
	return remaining[r.IntN(len(remaining))], true
}

// ApplyCalls returns a copy of card whose marks are derived from the call
// history alone. Client-side marks are discarded; the free space stays marked.
func ApplyCalls(card *model.BingoCard, called []int) *model.BingoCard {
	out := *card
	for col := range out.Columns {
		for row := range out.Columns[col] {
			sq := &out.Columns[col][row]
			if sq.Number == model.FreeSpace {
				sq.Marked = true
				sq.Called = false
				continue
			}
			hit := slices.Contains(called, sq.Number)
			sq.Marked = hit
			sq.Called = hit
		}
	}
	return &out
}
