package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-bingo/internal/game/bingo"
)

func TestStats_RevenueAndWinners(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	since := time.Now().Add(-time.Hour)

	for _, id := range []string{"A", "B", "C"} {
		env.fund(t, id, "1000")
	}
	room := env.createRoom(t, 5, "100")
	for _, id := range []string{"A", "B", "C"} {
		_, err := env.rooms.Join(ctx, room.ID, player(id))
		require.NoError(t, err)
	}
	_, err := env.rooms.Leave(ctx, room.ID, "C")
	require.NoError(t, err)

	revenue, err := env.stats.HouseRevenue(ctx, since)
	require.NoError(t, err)
	assert.True(t, revenue.Equal(dec("20")), revenue.String())

	_, err = env.rooms.Start(ctx, room.ID, "host")
	require.NoError(t, err)
	_, err = env.rooms.DeclareWinner(ctx, room.ID, "B", bingo.PatternFullHouse, bingo.FullHousePercentage)
	require.NoError(t, err)

	winners, err := env.stats.TopWinners(ctx, since, 0)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, "B", winners[0].UserID)
	assert.True(t, winners[0].TotalWon.Equal(dec("180")))
	assert.Equal(t, 1, winners[0].Wins)

	stats, err := env.stats.GameStats(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CompletedRooms)
	assert.Equal(t, 0, stats.WaitingRooms)
	assert.True(t, stats.PrizesPaid.Equal(dec("180")))
	assert.True(t, stats.HouseRevenue.Equal(dec("20")))
}

func TestStats_WeekAgoIsMidnight(t *testing.T) {
	env := newTestEnv(t)
	since := env.stats.WeekAgo()

	assert.Zero(t, since.Hour())
	assert.Zero(t, since.Minute())
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -7), since, 24*time.Hour)
}
