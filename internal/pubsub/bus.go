// Package pubsub fans out change events for rooms and wallets.
//
// LocalBus delivers inside one process. RedisBus relays through Redis
// pub/sub so every server instance sees every change.
package pubsub

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"telegram-bingo/internal/metrics"
)

// Handler receives a published payload.
type Handler func(payload []byte)

// Bus publishes payloads to topic subscribers.
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe registers h for topic and returns a function that removes it.
	Subscribe(topic string, h Handler) (unsubscribe func())
	Close() error
}

// subscriberBuffer is the per-subscriber queue length. A subscriber that
// falls further behind loses events.
const subscriberBuffer = 64

type subscription struct {
	topic string
	ch    chan []byte
	done  chan struct{}
	once  sync.Once
}

// LocalBus delivers to each subscriber on its own goroutine, preserving
// publish order per subscriber. Publish never blocks on a slow subscriber.
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscription]struct{}
	closed bool
}

// NewLocalBus creates an empty LocalBus.
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[*subscription]struct{})}
}

// Publish delivers payload to the current subscribers of topic.
func (b *LocalBus) Publish(_ context.Context, topic string, payload []byte) error {
	b.deliver(topic, payload)
	return nil
}

func (b *LocalBus) deliver(topic string, payload []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[topic] {
		select {
		case sub.ch <- payload:
		default:
			metrics.EventsDropped.WithLabelValues(topicKind(topic)).Inc()
			log.Warn().Str("topic", topic).Msg("Subscriber queue full, dropping event")
		}
	}
}

// Subscribe registers h for topic.
func (b *LocalBus) Subscribe(topic string, h Handler) func() {
	sub := &subscription{
		topic: topic,
		ch:    make(chan []byte, subscriberBuffer),
		done:  make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		for {
			select {
			case payload := <-sub.ch:
				h(payload)
			case <-sub.done:
				return
			}
		}
	}()

	return func() { b.remove(sub) }
}

func (b *LocalBus) remove(sub *subscription) {
	sub.once.Do(func() {
		b.mu.Lock()
		if set, ok := b.subs[sub.topic]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, sub.topic)
			}
		}
		b.mu.Unlock()
		close(sub.done)
	})
}

// Subscribers returns the number of subscriptions on topic.
func (b *LocalBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close removes every subscription.
func (b *LocalBus) Close() error {
	b.mu.Lock()
	b.closed = true
	var all []*subscription
	for _, set := range b.subs {
		for sub := range set {
			all = append(all, sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range all {
		b.remove(sub)
	}
	return nil
}

func topicKind(topic string) string {
	kind, _, _ := strings.Cut(topic, ":")
	return kind
}
