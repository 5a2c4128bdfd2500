package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChangeFeed carries committed-write notices between processes
type ChangeFeed interface {
	Publish(ctx context.Context, change Change) error
	Listen(ctx context.Context) (<-chan Change, error)
}

// redis message envelope
type redisEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// RedisFeed is a ChangeFeed over one Redis pub/sub channel
type RedisFeed struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

var _ ChangeFeed = (*RedisFeed)(nil)

// NewRedisFeed creates a feed publishing on channel
func NewRedisFeed(client *redis.Client, channel string, logger *zap.Logger) *RedisFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisFeed{client: client, channel: channel, logger: logger.Named("redis_feed")}
}

// Publish announces a committed write
func (f *RedisFeed) Publish(ctx context.Context, change Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to encode change: %w", err)
	}
	b, err := json.Marshal(redisEvent{Type: change.Type, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, b).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}
	return nil
}

// Listen subscribes to the channel until ctx is done. Undecodable messages are skipped.
func (f *RedisFeed) Listen(ctx context.Context) (<-chan Change, error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}

	out := make(chan Change, 64)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev redisEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.logger.Debug("skipping malformed change event", zap.Error(err))
					continue
				}
				var change Change
				if err := json.Unmarshal(ev.Data, &change); err != nil {
					f.logger.Debug("skipping malformed change payload", zap.String("type", ev.Type), zap.Error(err))
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
