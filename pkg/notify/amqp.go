package notify

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	amqp "github.com/streadway/amqp"
)

// DefaultExchange is the topic exchange changes are published to.
const DefaultExchange = "pickup.changes"

// AMQPBridge delivers changes over a RabbitMQ topic exchange.
//
// Routing keys:
//
//	orders.<hex(userID)>  order changes
//
// User ids are hex encoded so that dots and wildcard characters in an id
// always form a single topic word.
//	catalog          catalog availability changes
type AMQPBridge struct {
	conn     *amqp.Connection
	exchange string
	logger   zerolog.Logger

	// publishing channel; amqp channels are not safe for concurrent publishes
	mu      sync.Mutex
	channel *amqp.Channel
}

// DialAMQP connects to the broker and declares the exchange.
func DialAMQP(url, exchange string) (*AMQPBridge, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	b, err := NewAMQPBridge(conn, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return b, nil
}

// NewAMQPBridge creates a bridge on an open connection.
func NewAMQPBridge(conn *amqp.Connection, exchange string) (*AMQPBridge, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		ch.Close()
		return nil, err
	}

	return &AMQPBridge{
		conn:     conn,
		exchange: exchange,
		channel:  ch,
		logger:   log.With().Str("component", "notify").Str("transport", "amqp").Logger(),
	}, nil
}

func declareExchange(ch *amqp.Channel, name string) error {
	err := ch.ExchangeDeclare(
		name,    // name
		"topic", // kind
		true,    // durable
		false,   // auto-deleted
		false,   // internal
		false,   // no-wait
		nil,     // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", name, err)
	}
	return nil
}

func routingKey(c Change) (string, error) {
	switch c.Table {
	case TableOrders:
		if c.UserID == "" {
			return "orders.unknown", nil
		}
		return userKey(c.UserID), nil
	case TableCatalog:
		return "catalog", nil
	default:
		return "", fmt.Errorf("unknown table %q", c.Table)
	}
}

func userKey(userID string) string {
	return "orders." + hex.EncodeToString([]byte(userID))
}

func bindingKeys(f Filter) []string {
	var keys []string
	if f.AllOrders {
		keys = append(keys, "orders.#")
	} else if f.UserID != "" {
		keys = append(keys, userKey(f.UserID))
	}
	if f.Catalog {
		keys = append(keys, "catalog")
	}
	return keys
}

// Publish sends c to the exchange.
func (b *AMQPBridge) Publish(ctx context.Context, c Change) error {
	key, err := routingKey(c)
	if err != nil {
		return err
	}
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	err = b.channel.Publish(
		b.exchange, // exchange
		key,        // routing key
		false,      // mandatory
		false,      // immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
			Timestamp:   time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}

	publishedTotal.WithLabelValues("amqp", string(c.Table)).Inc()
	return nil
}

// Subscribe declares an exclusive queue bound for f and consumes it on a
// dedicated channel until the subscription is closed.
func (b *AMQPBridge) Subscribe(ctx context.Context, f Filter, h Handler) (Subscription, error) {
	if f.Empty() {
		return nil, ErrEmptyFilter
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue, err := ch.QueueDeclare(
		"",    // name: server generated
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range bindingKeys(f) {
		if err := ch.QueueBind(queue.Name, key, b.exchange, false, nil); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	msgs, err := ch.Consume(
		queue.Name, // queue
		"",         // consumer tag
		true,       // auto-ack
		true,       // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	sub := &amqpSubscription{channel: ch, done: make(chan struct{})}
	activeSubscriptions.WithLabelValues("amqp").Inc()

	go func() {
		defer close(sub.done)
		for msg := range msgs {
			var c Change
			if err := json.Unmarshal(msg.Body, &c); err != nil {
				decodeErrorsTotal.WithLabelValues("amqp").Inc()
				b.logger.Warn().Err(err).Str("routing_key", msg.RoutingKey).Msg("Dropping undecodable change")
				continue
			}
			if !f.Matches(c) {
				continue
			}
			deliveredTotal.WithLabelValues("amqp", string(c.Table)).Inc()
			h(c)
		}
	}()

	return sub, nil
}

// Close closes the publishing channel and the connection.
func (b *AMQPBridge) Close() error {
	var errs []error
	b.mu.Lock()
	if err := b.channel.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
	}
	b.mu.Unlock()
	if err := b.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("multiple errors occurred during RabbitMQ bridge close: %v", errs)
	}
	return nil
}

type amqpSubscription struct {
	channel *amqp.Channel
	done    chan struct{}
	once    sync.Once
	err     error
}

func (s *amqpSubscription) Close() error {
	s.once.Do(func() {
		s.err = s.channel.Close()
		<-s.done
		activeSubscriptions.WithLabelValues("amqp").Dec()
	})
	return s.err
}
