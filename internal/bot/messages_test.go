package bot

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"telegram-bingo/internal/model"
	"telegram-bingo/internal/service"
)

func TestRoomsMessage(t *testing.T) {
	assert.Contains(t, RoomsMessage(nil, "ETB"), "No open games")

	msg := RoomsMessage([]*model.GameRoom{
		{Name: "<Friday>", Status: model.RoomWaiting, MaxPlayers: 10, EntryFee: decimal.NewFromInt(50)},
		{Name: "Free", Status: model.RoomPlaying, MaxPlayers: 5, Players: []model.Player{{ID: "a"}, {ID: "b"}}},
	}, "ETB")
	assert.Contains(t, msg, "&lt;Friday&gt;")
	assert.Contains(t, msg, "50.00 ETB")
	assert.Contains(t, msg, "2/5")
	assert.Contains(t, msg, "free")
}

func TestRoomStatusMessage(t *testing.T) {
	call := 7
	room := &model.GameRoom{
		Name:          "Evening",
		Status:        model.RoomCompleted,
		MaxPlayers:    4,
		Players:       []model.Player{{ID: "p1", Name: "Abebe"}, {ID: "p2"}},
		PrizePool:     decimal.NewFromInt(180),
		CalledNumbers: []int{3, 7},
		CurrentCall:   &call,
		WinnerID:      "p1",
		WinPattern:    "B Column",
		WinAmount:     decimal.NewFromInt(180),
	}
	msg := RoomStatusMessage(room, "ETB")
	assert.Contains(t, msg, "2/75")
	assert.Contains(t, msg, "B-7")
	assert.Contains(t, msg, "Abebe")
	assert.Contains(t, msg, "180.00 ETB")

	room.WinnerID = ""
	assert.Contains(t, RoomStatusMessage(room, "ETB"), "without a winner")
}

func TestStatsMessage(t *testing.T) {
	stats := &service.GameStats{
		CompletedRooms: 3,
		PrizesPaid:     decimal.NewFromInt(500),
		HouseRevenue:   decimal.NewFromInt(60),
		Since:          time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	msg := StatsMessage(stats, []*model.WinnerRank{{UserID: "u1", TotalWon: decimal.NewFromInt(300), Wins: 2}}, "ETB")
	assert.Contains(t, msg, "2026-01-05")
	assert.Contains(t, msg, "60.00 ETB")
	assert.Contains(t, msg, "🥇 u1: +300.00 ETB (2 wins)")

	assert.Contains(t, StatsMessage(stats, nil, "ETB"), "No data yet")
}
