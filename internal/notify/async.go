package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-bingo/internal/metrics"
	"telegram-bingo/internal/model"
)

type job struct {
	kind   string
	roomID string
	run    func(ctx context.Context) error
}

// Async queues notifications for a background worker so game operations
// never wait on delivery. When the queue is full the notification is dropped.
type Async struct {
	next    Notifier
	timeout time.Duration
	queue   chan job

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAsync starts a worker delivering to next. Each delivery gets timeout.
func NewAsync(next Notifier, queueSize int, timeout time.Duration) *Async {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &Async{
		next:    next,
		timeout: timeout,
		queue:   make(chan job, queueSize),
	}
	a.wg.Add(1)
	go a.worker()
	return a
}

func (a *Async) worker() {
	defer a.wg.Done()
	for j := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		if err := j.run(ctx); err != nil {
			log.Warn().
				Err(err).
				Str("notification", j.kind).
				Str("room_id", j.roomID).
				Msg("Notification delivery failed")
		}
		cancel()
	}
}

func (a *Async) enqueue(kind string, room *model.GameRoom, run func(ctx context.Context, room *model.GameRoom) error) error {
	snapshot := room.Clone()
	j := job{
		kind:   kind,
		roomID: room.ID,
		run:    func(ctx context.Context) error { return run(ctx, snapshot) },
	}

	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		metrics.NotificationsDropped.Inc()
		log.Warn().Str("notification", kind).Str("room_id", room.ID).Msg("Notifier closed, dropping")
		return nil
	}

	select {
	case a.queue <- j:
	default:
		metrics.NotificationsDropped.Inc()
		log.Warn().Str("notification", kind).Str("room_id", room.ID).Msg("Notification queue full, dropping")
	}
	return nil
}

// RoomCreated queues an invite.
func (a *Async) RoomCreated(_ context.Context, room *model.GameRoom) error {
	return a.enqueue("room_created", room, a.next.RoomCreated)
}

// GameStarted queues a start announcement.
func (a *Async) GameStarted(_ context.Context, room *model.GameRoom) error {
	return a.enqueue("game_started", room, a.next.GameStarted)
}

// NumberCalled queues a call announcement.
func (a *Async) NumberCalled(_ context.Context, room *model.GameRoom, number int) error {
	return a.enqueue("number_called", room, func(ctx context.Context, r *model.GameRoom) error {
		return a.next.NumberCalled(ctx, r, number)
	})
}

// WinnerDeclared queues a winner announcement.
func (a *Async) WinnerDeclared(_ context.Context, room *model.GameRoom, winner model.Player) error {
	return a.enqueue("winner_declared", room, func(ctx context.Context, r *model.GameRoom) error {
		return a.next.WinnerDeclared(ctx, r, winner)
	})
}

// Close drains queued notifications and stops the worker.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	a.wg.Wait()
}
