package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AuditQueue receives every seat event for the audit log.
const AuditQueue = "seat_booking.audit"

// AuditConsumer appends one line per seat event to a local log file.
type AuditConsumer struct {
	url     string
	logPath string
	logger  *slog.Logger
}

// NewAuditConsumer builds a consumer writing to logPath (for example
// logs/seat-audit.log).
func NewAuditConsumer(url, logPath string, logger *slog.Logger) *AuditConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditConsumer{url: url, logPath: logPath, logger: logger}
}

// Run consumes until ctx is cancelled, reconnecting with exponential
// backoff whenever the broker connection is lost.
func (a *AuditConsumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := amqp.Dial(a.url)
		if err != nil {
			a.logger.Warn("audit consumer: dial failed", slog.Any("error", err), slog.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = a.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		a.logger.Warn("audit consumer: consume loop ended, reconnecting", slog.Any("error", err))
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func (a *AuditConsumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.logger.Warn("audit consumer: set QoS failed", slog.Any("error", err))
	}
	if err := declareExchange(ch); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(AuditQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	for _, key := range []string{"seat.#", "seats.#"} {
		if err := ch.QueueBind(AuditQueue, key, Exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind %s: %w", key, err)
		}
	}

	msgs, err := ch.Consume(AuditQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := a.handle(d.RoutingKey, d.Body); err != nil {
				a.logger.Error("audit consumer: handle message failed", slog.Any("error", err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (a *AuditConsumer) handle(routingKey string, body []byte) error {
	line, err := FormatAuditLine(routingKey, body)
	if err != nil {
		return err
	}
	return appendLine(a.logPath, line)
}

// FormatAuditLine renders one event as a single log line.
func FormatAuditLine(routingKey string, body []byte) (string, error) {
	switch routingKey {
	case RoutingSeatBooked, RoutingSeatReleased:
		var ev SeatEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] %s | event_id=%s | seat=%d | seat_id=%d | user=%q | user_id=%d | source=%s\n",
			ev.OccurredAt.Format(time.RFC3339), routingKey, ev.EventID, ev.SeatNumber, ev.SeatID, ev.Username, ev.UserID, ev.Source), nil
	case RoutingSeatsReset:
		var ev ResetEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		line := fmt.Sprintf("[%s] %s | event_id=%s | seats_released=%d | users_updated=%d | preassign=%s",
			ev.OccurredAt.Format(time.RFC3339), routingKey, ev.EventID, ev.SeatsReleased, ev.UsersUpdated, ev.PreAssignStatus)
		if ev.PreAssignReason != "" {
			line += fmt.Sprintf(" (%s)", ev.PreAssignReason)
		}
		if ev.Error != "" {
			line += fmt.Sprintf(" | error=%q", ev.Error)
		}
		return line + "\n", nil
	default:
		return "", fmt.Errorf("unknown routing key %q", routingKey)
	}
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
