package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedisBridge delivers changes over Redis pub/sub.
//
// Channels:
//
//	<ns>:notify:orders:<userID>  order changes of one customer
//	<ns>:notify:orders           every order change
//	<ns>:notify:catalog          catalog availability changes
type RedisBridge struct {
	client    *redis.Client
	namespace string
	logger    zerolog.Logger
}

// NewRedisBridge creates a bridge on the given Redis client.
func NewRedisBridge(client *redis.Client, namespace string) *RedisBridge {
	if client == nil {
		panic("redis client cannot be nil")
	}
	if namespace == "" {
		namespace = "pickup"
	}
	return &RedisBridge{
		client:    client,
		namespace: namespace,
		logger:    log.With().Str("component", "notify").Str("transport", "redis").Logger(),
	}
}

func (b *RedisBridge) userChannel(userID string) string {
	return b.namespace + ":notify:orders:" + userID
}

func (b *RedisBridge) ordersChannel() string {
	return b.namespace + ":notify:orders"
}

func (b *RedisBridge) catalogChannel() string {
	return b.namespace + ":notify:catalog"
}

// Publish sends c to every channel that may be subscribed to it.
func (b *RedisBridge) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	var channels []string
	switch c.Table {
	case TableOrders:
		channels = append(channels, b.ordersChannel())
		if c.UserID != "" {
			channels = append(channels, b.userChannel(c.UserID))
		}
	case TableCatalog:
		channels = append(channels, b.catalogChannel())
	default:
		return fmt.Errorf("unknown table %q", c.Table)
	}

	_, err = b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ch := range channels {
			pipe.Publish(ctx, ch, data)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	publishedTotal.WithLabelValues("redis", string(c.Table)).Inc()
	return nil
}

// Subscribe opens a subscription for f. The subscription is confirmed by
// the server before Subscribe returns.
func (b *RedisBridge) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	if f.Empty() {
		return nil, ErrEmptyFilter
	}

	var channels []string
	if f.AllOrders {
		channels = append(channels, b.ordersChannel())
	} else if f.UserID != "" {
		channels = append(channels, b.userChannel(f.UserID))
	}
	if f.Catalog {
		channels = append(channels, b.catalogChannel())
	}

	pubsub := b.client.Subscribe(ctx, channels...)
	for range channels {
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			return nil, fmt.Errorf("redis subscribe: %w", err)
		}
	}

	sub := &redisSubscription{pubsub: pubsub, done: make(chan struct{})}
	activeSubscriptions.WithLabelValues("redis").Inc()

	go func() {
		defer close(sub.done)
		for msg := range pubsub.Channel() {
			var c Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				decodeErrorsTotal.WithLabelValues("redis").Inc()
				b.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping undecodable change")
				continue
			}
			if !f.Matches(c) {
				continue
			}
			deliveredTotal.WithLabelValues("redis", string(c.Table)).Inc()
			h(c)
		}
	}()

	return sub, nil
}

type redisSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	once   sync.Once
	err    error
}

func (s *redisSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.pubsub.Close()
		<-s.done
		activeSubscriptions.WithLabelValues("redis").Dec()
	})
	return s.err
}
