// Package redisfeed carries task change events over Redis pub/sub for store
// drivers that have no native change stream.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"task-manager/server/internal/store"

	"github.com/redis/go-redis/v9"
)

const DefaultChannel = "task-updates"

type Feed struct {
	client     *redis.Client
	channel    string
	bufferSize int
	logger     *slog.Logger
}

var _ store.ChangeFeed = (*Feed)(nil)

func New(client *redis.Client, channel string, bufferSize int, logger *slog.Logger) *Feed {
	if channel == "" {
		channel = DefaultChannel
	}
	if bufferSize < 1 {
		bufferSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{client: client, channel: channel, bufferSize: bufferSize, logger: logger}
}

func (f *Feed) Publish(ctx context.Context, ev store.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// WatchTasks returns once Redis has confirmed the subscription, so nothing
// published afterwards is missed.
func (f *Feed) WatchTasks(ctx context.Context) (store.Subscription, error) {
	pubsub := f.client.Subscribe(ctx, f.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", f.channel, err)
	}

	stream, streamCtx := store.NewStream(ctx, f.bufferSize)
	messages := pubsub.Channel(redis.WithChannelSize(f.bufferSize))
	go f.relay(streamCtx, pubsub, messages, stream)
	return stream, nil
}

func (f *Feed) relay(ctx context.Context, pubsub *redis.PubSub, messages <-chan *redis.Message, stream *store.Stream) {
	var err error
	defer func() { stream.Finish(err) }()
	defer pubsub.Close()

	for {
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case msg, ok := <-messages:
			if !ok {
				err = fmt.Errorf("redis subscription to %s closed", f.channel)
				return
			}
			var ev store.ChangeEvent
			if decodeErr := json.Unmarshal([]byte(msg.Payload), &ev); decodeErr != nil {
				f.logger.Warn("skipping undecodable change event", "channel", f.channel, "error", decodeErr)
				continue
			}
			if !stream.Send(ev) {
				f.logger.Warn("task change subscriber fell behind, closing stream")
				return
			}
		}
	}
}
