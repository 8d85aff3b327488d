package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
	"github.com/wms/stocktaking/internal/domain/shared"
	"go.uber.org/zap"
)

var _ stocktakingapp.Notifier = (*RedisNotifier)(nil)

// RedisNotifier publishes notifications on a Redis channel so every server
// instance can push them to its own websocket clients.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

// NewRedisNotifier creates a RedisNotifier. The caller keeps ownership of client.
func NewRedisNotifier(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisNotifier {
	if channel == "" {
		channel = "stocktaking:notifications"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// Notify publishes n as JSON
func (r *RedisNotifier) Notify(ctx context.Context, n stocktakingapp.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return shared.Network("publish notification", err)
	}
	return nil
}

// Relay subscribes to the channel and hands each notification to deliver
// until ctx is cancelled. It blocks, so run it in its own goroutine.
func (r *RedisNotifier) Relay(ctx context.Context, deliver stocktakingapp.Notifier) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.Info("Relaying notifications", zap.String("channel", r.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				r.logger.Warn("Notification channel closed", zap.String("channel", r.channel))
				return nil
			}
			var n stocktakingapp.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				r.logger.Error("Dropping malformed notification", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if err := deliver.Notify(ctx, n); err != nil {
				r.logger.Warn("Relay delivery failed", zap.String("recipient", n.Recipient), zap.Error(err))
			}
		}
	}
}
