package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher fans events out over redis pub/sub. Delivery is
// at-most-once; subscribers that are offline miss events.
type RedisPublisher struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisPublisher(client *redis.Client, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	receivers, err := p.client.Publish(ctx, stream, data).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", stream, err)
	}
	p.log.Debug("event published",
		zap.String("stream", stream),
		zap.String("type", event.Type),
		zap.Int64("receivers", receivers),
	)
	return nil
}

type RedisSubscriber struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisSubscriber(client *redis.Client, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, log: log}
}

// Subscribe waits for the subscription to be confirmed, then delivers
// events to handler on a background goroutine until ctx is done.
func (s *RedisSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	pubsub := s.client.Subscribe(ctx, stream)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe to %s: %w", stream, err)
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					s.log.Error("failed to unmarshal event", zap.String("stream", stream), zap.Error(err))
					continue
				}
				s.dispatch(stream, event, handler)
			}
		}
	}()

	return nil
}

func (s *RedisSubscriber) dispatch(stream string, event Event, handler func(Event)) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("event handler panicked",
				zap.String("stream", stream),
				zap.String("type", event.Type),
				zap.Any("panic", r),
			)
		}
	}()
	handler(event)
}
