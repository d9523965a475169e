// Package redisstream builds the watermill transport session events travel
// on: Redis Streams when enabled, an in-process channel otherwise.
package redisstream

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/go-go-golems/ragchat/pkg/logging"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Settings holds Redis Streams transport configuration for watermill.
type Settings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Group    string `yaml:"group" mapstructure:"group"`
	Consumer string `yaml:"consumer" mapstructure:"consumer"`
}

func DefaultSettings() Settings {
	return Settings{
		Addr:     "localhost:6379",
		Group:    "ragchat",
		Consumer: "cli-1",
	}
}

// ForSession returns settings with a consumer group of its own for one chat
// session. Consumers in a shared group split the stream between them, so a
// session sharing the default group with `ragchat events` would miss some of
// its own events.
func (s Settings) ForSession(sessionID string) Settings {
	ret := s
	ret.Group = s.Group + "." + sessionID
	ret.Consumer = sessionID
	return ret
}

// PubSub bundles the publisher and subscriber of one transport.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	redis  *redis.Client
	closer func() error
}

// Redis returns the underlying client, nil for the in-memory transport.
func (p *PubSub) Redis() *redis.Client { return p.redis }

func (p *PubSub) Close() error {
	return p.closer()
}

// Build returns the transport described by s. When s.Enabled is false it
// returns an in-memory channel; messages published there without a live
// subscriber are dropped.
func Build(s Settings) (*PubSub, error) {
	logger := logging.NewWatermill(log.Logger)
	if !s.Enabled {
		return newInMemory(logger), nil
	}
	if s.Addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "could not create redis publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, errors.Wrap(err, "could not create redis subscriber")
	}

	return &PubSub{
		Publisher:  pub,
		Subscriber: sub,
		redis:      client,
		closer: func() error {
			var ret error
			if err := sub.Close(); err != nil {
				ret = err
			}
			if err := pub.Close(); err != nil && ret == nil {
				ret = err
			}
			if err := client.Close(); err != nil && ret == nil {
				ret = err
			}
			return ret
		},
	}, nil
}

func newInMemory(logger watermill.LoggerAdapter) *PubSub {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	return &PubSub{
		Publisher:  ch,
		Subscriber: ch,
		closer:     ch.Close,
	}
}

// EnsureGroupAtTail creates the consumer group for stream at the tail ($) if
// it doesn't exist, so a new consumer does not replay old session events.
func EnsureGroupAtTail(ctx context.Context, client *redis.Client, stream, group string) error {
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "could not create consumer group %s on %s", group, stream)
	}
	log.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}
