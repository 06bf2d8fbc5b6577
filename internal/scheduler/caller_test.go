package scheduler

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-bingo/internal/game/bingo"
	"telegram-bingo/internal/model"
	"telegram-bingo/internal/pkg/lock"
	"telegram-bingo/internal/repository/memory"
	"telegram-bingo/internal/service"
)

type harness struct {
	store  *memory.Store
	rooms  *service.RoomService
	caller *Caller
}

func newHarness(t *testing.T, leaser *lock.Leaser) *harness {
	t.Helper()
	store := memory.New("")
	wallet := service.NewWalletService(store, nil, service.DefaultWalletLimits())
	rooms := service.NewRoomService(store, store, wallet, nil, nil, service.DefaultRoomConfig())
	caller := NewCaller(rooms, leaser, Config{Warmup: 0, CallInterval: time.Millisecond})
	rooms.SetScheduler(caller)
	t.Cleanup(caller.Stop)
	return &harness{store: store, rooms: rooms, caller: caller}
}

func (h *harness) startRoom(t *testing.T, interval time.Duration) *model.GameRoom {
	t.Helper()
	ctx := context.Background()
	room, err := h.rooms.Create(ctx, service.CreateRoomInput{
		HostID:       "host",
		Name:         "Caller test",
		MaxPlayers:   4,
		CallInterval: interval,
	})
	require.NoError(t, err)
	for _, id := range []string{"A", "B"} {
		_, err := h.rooms.Join(ctx, room.ID, model.Player{ID: id})
		require.NoError(t, err)
	}
	room, err = h.rooms.Start(ctx, room.ID, "host")
	require.NoError(t, err)
	return room
}

func (h *harness) room(t *testing.T, id string) *model.GameRoom {
	t.Helper()
	room, err := h.store.GetRoom(context.Background(), id)
	require.NoError(t, err)
	return room
}

func TestCaller_RunsToExhaustion(t *testing.T) {
	h := newHarness(t, nil)
	room := h.startRoom(t, time.Millisecond)

	require.Eventually(t, func() bool {
		return h.room(t, room.ID).Status == model.RoomCompleted
	}, 10*time.Second, 10*time.Millisecond)

	final := h.room(t, room.ID)
	assert.Len(t, final.CalledNumbers, model.MaxCallNumber)
	assert.Empty(t, final.WinnerID)
	assert.Eventually(t, func() bool { return !h.caller.Running(room.ID) }, time.Second, 5*time.Millisecond)
}

func TestCaller_StopsWhenRoomSettles(t *testing.T) {
	h := newHarness(t, nil)
	room := h.startRoom(t, 20*time.Millisecond)

	require.Eventually(t, func() bool {
		return len(h.room(t, room.ID).CalledNumbers) >= 3
	}, 5*time.Second, 5*time.Millisecond)

	_, err := h.rooms.DeclareWinner(context.Background(), room.ID, "A", "Row 1", bingo.LinePercentage)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return !h.caller.Running(room.ID) }, 2*time.Second, 5*time.Millisecond)
	called := len(h.room(t, room.ID).CalledNumbers)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, called, len(h.room(t, room.ID).CalledNumbers))
}

func TestCaller_StopsWhenRoomMissing(t *testing.T) {
	h := newHarness(t, nil)

	h.caller.Schedule("missing")
	assert.Eventually(t, func() bool { return !h.caller.Running("missing") }, 2*time.Second, 5*time.Millisecond)
}

type countingRooms struct {
	draws atomic.Int32
}

func (r *countingRooms) Get(_ context.Context, id string) (*model.GameRoom, error) {
	return &model.GameRoom{ID: id, Status: model.RoomPlaying, NumberCallIntervalMs: 1}, nil
}

func (r *countingRooms) DrawNext(context.Context, string) (int, bool, error) {
	r.draws.Add(1)
	return 1, false, nil
}

func (r *countingRooms) CompleteExhausted(context.Context, string) (*model.GameRoom, error) {
	return nil, nil
}

func (r *countingRooms) ListPlaying(context.Context) ([]*model.GameRoom, error) {
	return []*model.GameRoom{{ID: "r1"}, {ID: "r2"}}, nil
}

func TestCaller_StopDuringWarmup(t *testing.T) {
	rooms := &countingRooms{}
	caller := NewCaller(rooms, nil, Config{Warmup: time.Hour})

	caller.Schedule("r1")
	caller.Schedule("r1")
	assert.True(t, caller.Running("r1"))

	caller.Stop()
	assert.False(t, caller.Running("r1"))
	assert.Zero(t, rooms.draws.Load())

	caller.Schedule("r1")
	assert.False(t, caller.Running("r1"), "schedule after stop is ignored")
}

func TestCaller_Resume(t *testing.T) {
	rooms := &countingRooms{}
	caller := NewCaller(rooms, nil, Config{Warmup: time.Hour})
	defer caller.Stop()

	n, err := caller.Resume(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, caller.Running("r1"))
	assert.True(t, caller.Running("r2"))

	n, err = caller.Resume(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n, "rooms already running are not resumed twice")
}

// Integration-style test: runs only if REDIS_ADDR is set.
func TestCaller_LeaseAllowsOneInstance(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	leaser := lock.NewLeaser(client, "test:caller:"+uuid.NewString()+":", time.Second)
	first, second := &countingRooms{}, &countingRooms{}
	a := NewCaller(first, leaser, Config{Warmup: 0})
	b := NewCaller(second, leaser, Config{Warmup: 0})

	a.Schedule("shared")
	require.Eventually(t, func() bool { return first.draws.Load() > 0 }, 2*time.Second, 5*time.Millisecond)

	b.Schedule("shared")
	require.Eventually(t, func() bool { return !b.Running("shared") }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, second.draws.Load())

	a.Stop()
	b.Stop()
}
