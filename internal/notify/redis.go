package notify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sameermankotia/AptosAI/internal/config"
	xerrors "github.com/sameermankotia/AptosAI/internal/errors"
)

const defaultRedisChannel = "aptosai:events"

// RedisNotifier publishes events to a Redis pub/sub channel so external
// consumers (dashboards, bots) can react to trades in real time.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

// NewRedisNotifier connects to Redis and verifies the connection.
func NewRedisNotifier(ctx context.Context, cfg config.RedisNotify) (*RedisNotifier, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "redis address must not be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, xerrors.Wrap(xerrors.CodeNotifyFailure, err, "ping redis")
	}
	channel := cfg.Channel
	if channel == "" {
		channel = defaultRedisChannel
	}
	return &RedisNotifier{client: client, channel: channel}, nil
}

func (*RedisNotifier) Name() string { return "redis" }

// Notify publishes the event as JSON.
func (n *RedisNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeNotifyFailure, err, "encode event")
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeNotifyFailure, err, "publish event to redis")
	}
	return nil
}

// Close releases the Redis connection.
func (n *RedisNotifier) Close() error {
	if n == nil || n.client == nil {
		return nil
	}
	return n.client.Close()
}
