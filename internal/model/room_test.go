package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomStatusTransitions(t *testing.T) {
	allowed := map[[2]RoomStatus]bool{
		{RoomWaiting, RoomStarting}:  true,
		{RoomWaiting, RoomPlaying}:   true,
		{RoomStarting, RoomPlaying}:  true,
		{RoomPlaying, RoomCompleted}: true,
	}
	all := []RoomStatus{RoomWaiting, RoomStarting, RoomPlaying, RoomCompleted}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]RoomStatus{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestGameRoomRemaining(t *testing.T) {
	r := &GameRoom{CalledNumbers: []int{1, 75, 40}}
	rem := r.Remaining()
	assert.Len(t, rem, 72)
	assert.NotContains(t, rem, 1)
	assert.NotContains(t, rem, 40)
	assert.NotContains(t, rem, 75)
	assert.Equal(t, 2, rem[0])
}

func TestGameRoomPlayers(t *testing.T) {
	r := &GameRoom{MaxPlayers: 2}
	r.Players = append(r.Players, Player{ID: "a"}, Player{ID: "b"})

	assert.True(t, r.HasPlayer("a"))
	assert.True(t, r.IsFull())
	assert.False(t, r.RemovePlayer("c"))
	require.True(t, r.RemovePlayer("a"))
	assert.Equal(t, []Player{{ID: "b"}}, r.Players)
	assert.False(t, r.IsFull())
}

func TestGameRoomCloneIsDeep(t *testing.T) {
	n := 7
	r := &GameRoom{
		Players:       []Player{{ID: "a"}},
		CalledNumbers: []int{7},
		CurrentCall:   &n,
		EntryFee:      decimal.NewFromInt(10),
	}
	c := r.Clone()
	c.Players[0].Name = "changed"
	c.CalledNumbers[0] = 8
	*c.CurrentCall = 8

	assert.Empty(t, r.Players[0].Name)
	assert.Equal(t, 7, r.CalledNumbers[0])
	assert.Equal(t, 7, *r.CurrentCall)
	assert.True(t, c.EntryFee.Equal(r.EntryFee))
}

func TestTransactionDelta(t *testing.T) {
	amt := decimal.NewFromInt(100)
	assert.True(t, TxBet.Delta(amt).Equal(decimal.NewFromInt(-100)))
	assert.True(t, TxWithdrawal.Delta(amt).IsNegative())
	assert.True(t, TxWin.Delta(amt).Equal(amt))
	assert.True(t, TxRefund.Delta(amt).IsPositive())
}

func TestTransactionStatusTransitions(t *testing.T) {
	assert.True(t, TxPending.CanTransitionTo(TxCompleted))
	assert.True(t, TxPending.CanTransitionTo(TxFailed))
	assert.True(t, TxProcessing.CanTransitionTo(TxCompleted))
	assert.False(t, TxCompleted.CanTransitionTo(TxFailed))
	assert.False(t, TxFailed.CanTransitionTo(TxCompleted))
	assert.True(t, TxCancelled.IsTerminal())
}
