package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrReconnecting is returned by Publish while another caller is redialing
// the broker.
var ErrReconnecting = errors.New("rabbitmq reconnect in progress")

const defaultDialTimeout = 5 * time.Second

// Publisher publishes JSON events to the seat_booking topic exchange.  It
// keeps one connection and channel open and redials lazily after the
// broker drops them.  Only one caller redials at a time; the others fail
// fast until it finishes.
type Publisher struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	dialing bool
}

// NewPublisher dials the broker and declares the exchange.
func NewPublisher(url string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{url: url, logger: logger}
	conn, ch, err := dial(context.Background(), url)
	if err != nil {
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return p, nil
}

// dial opens a connection and channel and declares the exchange.  The TCP
// connect and the AMQP handshake are bounded by ctx's deadline, or by
// defaultDialTimeout when ctx has none.
func dial(ctx context.Context, url string) (*amqp.Connection, *amqp.Channel, error) {
	timeout := defaultDialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	if timeout <= 0 {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", context.DeadlineExceeded)
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := declareExchange(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

func declareExchange(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		Exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // autoDelete
		false,    // internal
		false,    // noWait
		nil,      // args
	); err != nil {
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	return nil
}

// Publish marshals payload and sends it with the given routing key as a
// persistent message.  A dropped connection is redialed within ctx's
// deadline; the mutex is not held while dialing.
func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, Exchange, routingKey, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", routingKey, err)
	}
	p.logger.Debug("event published", slog.String("routing_key", routingKey))
	return nil
}

// channel returns the open channel, redialing when the connection is gone.
func (p *Publisher) channel(ctx context.Context) (*amqp.Channel, error) {
	p.mu.Lock()
	if p.conn != nil && !p.conn.IsClosed() && p.ch != nil && !p.ch.IsClosed() {
		ch := p.ch
		p.mu.Unlock()
		return ch, nil
	}
	if p.dialing {
		p.mu.Unlock()
		return nil, ErrReconnecting
	}
	p.dialing = true
	p.closeLocked()
	p.mu.Unlock()

	conn, ch, err := dial(ctx, p.url)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing = false
	if err != nil {
		p.logger.Warn("rabbitmq redial failed", slog.Any("error", err))
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
