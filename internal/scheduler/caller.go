// Package scheduler runs the number-call loop of every playing room.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"telegram-bingo/internal/metrics"
	"telegram-bingo/internal/model"
	"telegram-bingo/internal/pkg/apperr"
	"telegram-bingo/internal/pkg/lock"
)

// Default timings.
const (
	DefaultWarmup       = 5 * time.Second
	DefaultCallInterval = 8 * time.Second
)

// Rooms is the part of the room service the caller drives.
type Rooms interface {
	Get(ctx context.Context, roomID string) (*model.GameRoom, error)
	DrawNext(ctx context.Context, roomID string) (int, bool, error)
	CompleteExhausted(ctx context.Context, roomID string) (*model.GameRoom, error)
	ListPlaying(ctx context.Context) ([]*model.GameRoom, error)
}

// Config holds caller timings.
type Config struct {
	Warmup time.Duration
	// CallInterval is used for rooms without their own cadence.
	CallInterval time.Duration
}

// Caller runs one goroutine per playing room. Each loop re-reads the room
// before every draw and stops on its own once the room is gone, no longer
// playing, or out of numbers.
//
// With a Leaser, a loop first takes a Redis lease on its room so that only
// one server instance calls numbers for it.
type Caller struct {
	rooms  Rooms
	leaser *lock.Leaser
	cfg    Config

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running map[string]struct{}
	wg      sync.WaitGroup
}

// NewCaller creates a Caller. leaser may be nil.
func NewCaller(rooms Rooms, leaser *lock.Leaser, cfg Config) *Caller {
	if cfg.Warmup < 0 {
		cfg.Warmup = 0
	}
	if cfg.CallInterval <= 0 {
		cfg.CallInterval = DefaultCallInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Caller{
		rooms:   rooms,
		leaser:  leaser,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		running: make(map[string]struct{}),
	}
}

// Schedule starts the call loop for roomID. Scheduling a room that already
// has a loop in this process is a no-op, as is scheduling after Stop.
func (c *Caller) Schedule(roomID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ctx.Err() != nil {
		return
	}
	if _, ok := c.running[roomID]; ok {
		return
	}
	c.running[roomID] = struct{}{}
	c.wg.Add(1)
	metrics.ActiveCallers.Inc()

	go c.run(roomID)
}

// Running reports whether roomID has a loop in this process.
func (c *Caller) Running(roomID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[roomID]
	return ok
}

// Resume schedules every playing room without a loop in this process and
// returns how many were started. It is called on startup so games survive
// a restart.
func (c *Caller) Resume(ctx context.Context) (int, error) {
	rooms, err := c.rooms.ListPlaying(ctx)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, room := range rooms {
		if c.Running(room.ID) {
			continue
		}
		c.Schedule(room.ID)
		resumed++
	}
	if resumed > 0 {
		log.Info().Int("rooms", resumed).Msg("Resumed number callers")
	}
	return resumed, nil
}

// Stop cancels every loop and waits for them to exit.
func (c *Caller) Stop() {
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Caller) done(roomID string) {
	c.mu.Lock()
	delete(c.running, roomID)
	c.mu.Unlock()
	metrics.ActiveCallers.Dec()
	c.wg.Done()
}

func (c *Caller) run(roomID string) {
	defer c.done(roomID)
	ctx := c.ctx
	logger := log.With().Str("room_id", roomID).Logger()

	var lease *lock.Lease
	if c.leaser != nil {
		var err error
		lease, err = c.leaser.Acquire(ctx, "caller:"+roomID)
		if err != nil {
			if errors.Is(err, lock.ErrLeaseHeld) {
				logger.Debug().Msg("Room is called by another instance")
			} else {
				logger.Error().Err(err).Msg("Failed to acquire caller lease")
			}
			return
		}
		defer func() {
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := lease.Release(relCtx); err != nil {
				logger.Warn().Err(err).Msg("Failed to release caller lease")
			}
		}()
	}

	logger.Debug().Dur("warmup", c.cfg.Warmup).Msg("Number caller started")
	if !c.wait(ctx, c.cfg.Warmup, lease, logger) {
		return
	}

	for {
		room, err := c.rooms.Get(ctx, roomID)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			logger.Debug().Msg("Room not found, stopping number caller")
			return
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			logger.Warn().Err(err).Msg("Failed to read room, retrying")
		case room.Status != model.RoomPlaying:
			logger.Debug().Str("status", string(room.Status)).Msg("Room left play, stopping number caller")
			return
		default:
			if !c.draw(ctx, roomID, logger) {
				return
			}
		}

		interval := c.cfg.CallInterval
		if room != nil && room.CallInterval() > 0 {
			interval = room.CallInterval()
		}
		if !c.wait(ctx, interval, lease, logger) {
			return
		}
	}
}

// draw calls one number. It reports whether the loop should continue.
func (c *Caller) draw(ctx context.Context, roomID string, logger zerolog.Logger) bool {
	_, exhausted, err := c.rooms.DrawNext(ctx, roomID)
	switch {
	case err == nil && !exhausted:
		return true
	case err == nil:
		if _, err := c.rooms.CompleteExhausted(ctx, roomID); err != nil && !errors.Is(err, apperr.ErrConflict) {
			logger.Error().Err(err).Msg("Failed to complete exhausted room")
		}
		return false
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrNotFound):
		// Settled or removed between the read and the draw.
		return false
	default:
		if ctx.Err() != nil {
			return false
		}
		logger.Warn().Err(err).Msg("Failed to draw number, retrying")
		return true
	}
}

// wait sleeps for d while keeping the lease alive. It returns false when the
// caller is stopping or the lease was lost.
func (c *Caller) wait(ctx context.Context, d time.Duration, lease *lock.Lease, logger zerolog.Logger) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	var refresh <-chan time.Time
	if lease != nil {
		ticker := time.NewTicker(max(c.leaser.TTL()/3, 10*time.Millisecond))
		defer ticker.Stop()
		refresh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case <-refresh:
			if err := lease.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return false
				}
				logger.Warn().Err(err).Msg("Lost caller lease, stopping")
				return false
			}
		}
	}
}
