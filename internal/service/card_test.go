package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-bingo/internal/game/bingo"
	"telegram-bingo/internal/model"
)

func TestCardIssue_AtMostOncePerPlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.playingRoom(t, "0", "A", "B")

	first, err := env.cards.Issue(ctx, room.ID, "A")
	require.NoError(t, err)
	require.NoError(t, bingo.ValidateCard(first))
	assert.Equal(t, room.ID, first.RoomID)

	again, err := env.cards.Issue(ctx, room.ID, "A")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, first.Columns, again.Columns)

	other, err := env.cards.Issue(ctx, room.ID, "B")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCardIssue_ConcurrentRequestsShareOneCard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.playingRoom(t, "0", "A", "B")

	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			card, err := env.cards.Issue(ctx, room.ID, "A")
			if assert.NoError(t, err) {
				ids[i] = card.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestCardIssue_RequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.playingRoom(t, "0", "A", "B")

	_, err := env.cards.Issue(ctx, room.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotInRoom)

	_, err = env.cards.Get(ctx, room.ID, "B")
	assert.ErrorIs(t, err, ErrNoCard)
}

func TestCardGet_MarksFollowCalls(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	room := env.playingRoom(t, "0", "A", "B")

	card, err := env.cards.Issue(ctx, room.ID, "A")
	require.NoError(t, err)
	target := card.At(0, 0).Number

	_, err = env.store.UpdateRoom(ctx, room.ID, func(r *model.GameRoom) error {
		r.CalledNumbers = append(r.CalledNumbers, target)
		return nil
	})
	require.NoError(t, err)

	view, err := env.cards.Get(ctx, room.ID, "A")
	require.NoError(t, err)
	assert.True(t, view.IsMarked(0, 0))
	assert.True(t, view.At(0, 0).Called)
	assert.True(t, view.IsMarked(model.FreeRow, model.FreeCol))
	assert.False(t, view.IsMarked(1, 0))
}
