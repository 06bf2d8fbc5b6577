package pubsub

import (
	"context"
	"fmt"
	"strings"
	"sync"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisBus publishes through Redis and delivers every message received on
// its channel prefix to local subscribers, including messages this process
// published itself.
type RedisBus struct {
	client redis.UniversalClient
	prefix string
	local  *LocalBus
	ps     *redis.PubSub

	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewRedisBus subscribes to prefix+"*" and starts relaying.
func NewRedisBus(ctx context.Context, client redis.UniversalClient, prefix string) (*RedisBus, error) {
	ps := client.PSubscribe(ctx, prefix+"*")
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to redis: %w", err)
	}

	b := &RedisBus{
		client: client,
		prefix: prefix,
		local:  NewLocalBus(),
		ps:     ps,
	}

	b.wg.Add(1)
	go b.relay()

	log.Info().Str("pattern", prefix+"*").Msg("Redis event bus subscribed")
	return b, nil
}

func (b *RedisBus) relay() {
	defer b.wg.Done()
	for msg := range b.ps.Channel() {
		topic := strings.TrimPrefix(msg.Channel, b.prefix)
		b.local.deliver(topic, []byte(msg.Payload))
	}
}

// Publish sends payload to every instance subscribed to topic.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.Publish(ctx, b.prefix+topic, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers h for topic on this instance.
func (b *RedisBus) Subscribe(topic string, h Handler) func() {
	return b.local.Subscribe(topic, h)
}

// Close stops relaying and removes local subscriptions.
func (b *RedisBus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		err = b.ps.Close()
		b.wg.Wait()
		_ = b.local.Close()
	})
	return err
}
