package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"telegram-bingo/internal/model"
	"telegram-bingo/internal/pubsub"
	"telegram-bingo/internal/repository/memory"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (n *recordingNotifier) record(kind string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, kind)
	return n.err
}

func (n *recordingNotifier) RoomCreated(context.Context, *model.GameRoom) error {
	return n.record("created")
}

func (n *recordingNotifier) GameStarted(context.Context, *model.GameRoom) error {
	return n.record("started")
}

func (n *recordingNotifier) NumberCalled(context.Context, *model.GameRoom, int) error {
	return n.record("called")
}

func (n *recordingNotifier) WinnerDeclared(context.Context, *model.GameRoom, model.Player) error {
	return n.record("winner")
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type fakeScheduler struct {
	mu    sync.Mutex
	rooms []string
}

func (f *fakeScheduler) Schedule(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms = append(f.rooms, roomID)
}

type testEnv struct {
	store     *memory.Store
	bus       *pubsub.LocalBus
	wallet    *WalletService
	rooms     *RoomService
	cards     *CardService
	stats     *StatsService
	notifier  *recordingNotifier
	scheduler *fakeScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := memory.New("ETB")
	bus := pubsub.NewLocalBus()
	t.Cleanup(func() { _ = bus.Close() })
	feed := pubsub.NewFeed(bus)

	cfg := DefaultRoomConfig()
	env := &testEnv{
		store:     store,
		bus:       bus,
		notifier:  &recordingNotifier{},
		scheduler: &fakeScheduler{},
	}
	env.wallet = NewWalletService(store, feed, DefaultWalletLimits())
	env.rooms = NewRoomService(store, store, env.wallet, feed, env.notifier, cfg)
	env.rooms.SetScheduler(env.scheduler)
	env.rooms.SetRand(&lockedRand{r: rand.New(rand.NewPCG(7, 11))})
	env.cards = NewCardService(store, store)
	env.stats = NewStatsService(store, store, cfg.Commission, nil)
	return env
}

// lockedRand makes a seeded source safe for concurrent draws.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func (e *testEnv) fund(t *testing.T, userID, amount string) {
	t.Helper()
	if dec(amount).IsZero() {
		_, err := e.wallet.GetOrCreate(context.Background(), userID)
		require.NoError(t, err)
		return
	}
	_, err := e.wallet.GrantBonus(context.Background(), userID, dec(amount), "test funds")
	require.NoError(t, err)
}

func (e *testEnv) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	b, err := e.wallet.Balance(context.Background(), userID)
	require.NoError(t, err)
	return b
}

func (e *testEnv) createRoom(t *testing.T, maxPlayers int, fee string) *model.GameRoom {
	t.Helper()
	room, err := e.rooms.Create(context.Background(), CreateRoomInput{
		HostID:     "host",
		Name:       "Test room",
		MaxPlayers: maxPlayers,
		EntryFee:   dec(fee),
	})
	require.NoError(t, err)
	return room
}

// playingRoom stores a room already in play with the given pool.
func (e *testEnv) playingRoom(t *testing.T, pool string, players ...string) *model.GameRoom {
	t.Helper()
	room := &model.GameRoom{
		ID:            "room-" + players[0],
		Name:          "In play",
		HostID:        players[0],
		MaxPlayers:    10,
		EntryFee:      decimal.Zero,
		PrizePool:     dec(pool),
		Status:        model.RoomPlaying,
		CalledNumbers: []int{},
	}
	for _, p := range players {
		room.Players = append(room.Players, model.Player{ID: p, Name: p})
	}
	require.NoError(t, e.store.CreateRoom(context.Background(), room))
	return room
}

func player(id string) model.Player {
	return model.Player{ID: id, Name: "Player " + id}
}
