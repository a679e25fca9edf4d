package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ashirxD/Hospital-App-sub000/internal/platform/health"
)

// Broker fans emitted frames out to every server instance.
type Broker interface {
	Publish(ctx context.Context, room string, frame []byte) error
	// Run delivers frames published by any instance until ctx is done.
	Run(ctx context.Context, deliver func(room string, frame []byte)) error
}

const DefaultChannel = "clinic:rooms"

type envelope struct {
	Room  string          `json:"room"`
	Frame json.RawMessage `json:"frame"`
}

// RedisBroker relays frames over a Redis pub/sub channel.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

func NewRedisBroker(client *redis.Client, channel string, logger zerolog.Logger) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroker{client: client, channel: channel, logger: logger.With().Str("component", "redis-broker").Logger()}
}

func (b *RedisBroker) Publish(ctx context.Context, room string, frame []byte) error {
	msg, err := json.Marshal(envelope{Room: room, Frame: frame})
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, msg).Err()
}

// HealthCheck pings Redis and reports how many instances listen on the
// room channel.
func (b *RedisBroker) HealthCheck() health.Check {
	return health.Check{
		Name: "redis",
		Run: func(ctx context.Context) (interface{}, error) {
			if err := b.client.Ping(ctx).Err(); err != nil {
				return nil, err
			}
			subs, err := b.client.PubSubNumSub(ctx, b.channel).Result()
			if err != nil {
				return nil, err
			}
			return map[string]int64{"subscribers": subs[b.channel]}, nil
		},
	}
}

func (b *RedisBroker) Run(ctx context.Context, deliver func(room string, frame []byte)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info().Str("channel", b.channel).Msg("subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			room, frame, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn().Err(err).Msg("dropping malformed envelope")
				continue
			}
			deliver(room, frame)
		}
	}
}

func decodeEnvelope(payload []byte) (string, []byte, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", nil, err
	}
	if env.Room == "" || len(env.Frame) == 0 {
		return "", nil, fmt.Errorf("envelope missing room or frame")
	}
	return env.Room, env.Frame, nil
}
