package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rabbitmq/amqp091-go"
)

// Publisher publishes domain events by routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
	Close()
}

// EventProducer publishes JSON messages to a durable topic exchange.
type EventProducer struct {
	exchange string
	log      *slog.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

// Fallback drops events. It stands in when RabbitMQ is not configured or not
// reachable at startup.
type Fallback struct {
	Log *slog.Logger
}

func (p *Fallback) Publish(_ context.Context, routingKey string, _ interface{}) error {
	if p.Log != nil {
		p.Log.Debug("event publish skipped", "routing_key", routingKey)
	}
	return nil
}

func (p *Fallback) Close() {}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer dials RabbitMQ and declares the exchange.
func NewEventProducer(amqpURL, exchange string, logger *slog.Logger) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.DialConfig(cleanURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, errors.Wrap(err, "dial rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "open channel")
	}

	if err := declare(ch, exchange); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &EventProducer{exchange: exchange, log: logger, conn: conn, channel: ch}, nil
}

func declare(ch *amqp091.Channel, exchange string) error {
	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	)
	return errors.Wrapf(err, "declare exchange %s", exchange)
}

// Publish sends body as JSON. A closed channel is reopened once.
func (p *EventProducer) Publish(ctx context.Context, routingKey string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Body:         data,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg)
	if err == nil {
		return nil
	}

	p.log.Warn("publish failed, reopening channel", "routing_key", routingKey, "error", err)
	ch, chErr := p.conn.Channel()
	if chErr != nil {
		return errors.Wrap(chErr, "reopen channel")
	}
	p.channel = ch
	if err := declare(ch, p.exchange); err != nil {
		return err
	}
	return errors.Wrapf(
		p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg),
		"publish %s", routingKey,
	)
}

func (p *EventProducer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Connect returns an EventProducer, or a Fallback when url is empty or the
// broker cannot be reached.
func Connect(amqpURL, exchange string, logger *slog.Logger) Publisher {
	if strings.TrimSpace(amqpURL) == "" {
		return &Fallback{Log: logger}
	}
	p, err := NewEventProducer(amqpURL, exchange, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, domain events disabled", "error", err)
		return &Fallback{Log: logger}
	}
	return p
}
