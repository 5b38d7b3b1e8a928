package pubsub

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// Redis is the broker for horizontally-scaled gateways: every instance
// subscribed to the same channel sees every publish, so two users connected
// to different processes still receive each other's events.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, channel string, h Handler) (func(), error) {
	sub := r.client.Subscribe(ctx, channel)

	// Force the subscription to be established before returning so no
	// publish from this instance can race past its own subscriber.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	go func() {
		for msg := range sub.Channel() {
			h([]byte(msg.Payload))
		}
	}()

	return func() {
		if err := sub.Close(); err != nil {
			log.Printf("Error [pubsub unsubscribe]: %v", err)
		}
	}, nil
}
