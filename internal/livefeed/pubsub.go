package livefeed

import (
	"context"
	"encoding/json"
	"fmt"

	"grievance/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the Redis channel shared by all instances.
const DefaultChannel = "grievance:feed"

// RedisBridge publishes events through Redis so that every instance's hub receives them.
type RedisBridge struct {
	Redis   *redis.Client
	Channel string
	Hub     *Hub
	log     *zap.Logger
}

func NewRedisBridge(rdb *redis.Client, hub *Hub, log *zap.Logger) *RedisBridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisBridge{Redis: rdb, Channel: DefaultChannel, Hub: hub, log: log.With(zap.String("component", "livefeed-redis"))}
}

// Publish публікує подію в Redis Pub/Sub
func (b *RedisBridge) Publish(ctx context.Context, ev models.FeedEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.Redis.Publish(ctx, b.Channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Listen forwards Redis messages to the local hub until ctx is cancelled.
func (b *RedisBridge) Listen(ctx context.Context) error {
	pubsub := b.Redis.Subscribe(ctx, b.Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe: %w", err)
	}
	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.FeedEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warn("Error unmarshalling Redis message", zap.Error(err))
				continue
			}
			if err := b.Hub.Publish(ctx, ev); err != nil {
				return nil
			}
		}
	}
}
