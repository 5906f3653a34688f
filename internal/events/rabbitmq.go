package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smallbiznis/societyops/internal/config"
	"go.uber.org/zap"
)

// RabbitMQSink publishes events to a durable exchange using the event type
// as routing key. It connects on first use and reconnects after the
// connection drops.
type RabbitMQSink struct {
	cfg config.RabbitMQConfig
	log *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewRabbitMQSink(cfg config.RabbitMQConfig, log *zap.Logger) *RabbitMQSink {
	return &RabbitMQSink{cfg: cfg, log: log.Named("events.rabbitmq")}
}

func (s *RabbitMQSink) Send(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureChannel(); err != nil {
		return err
	}

	err := s.ch.PublishWithContext(
		ctx,
		s.cfg.Exchange,
		string(msg.Type),
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     ulid.Make().String(),
			CorrelationId: msg.ID,
			Timestamp:     msg.OccurredAt,
			Type:          string(msg.Type),
			Headers: amqp.Table{
				"aggregate_type": msg.AggregateType,
				"aggregate_id":   msg.AggregateID,
			},
			Body: msg.Payload,
		},
	)
	if err != nil {
		s.resetLocked()
		return fmt.Errorf("rabbitmq: publish %s: %w", msg.Type, err)
	}
	return nil
}

func (s *RabbitMQSink) ensureChannel() error {
	if s.ch != nil && s.conn != nil && !s.conn.IsClosed() && !s.ch.IsClosed() {
		return nil
	}
	s.resetLocked()

	conn, err := amqp.Dial(s.cfg.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(s.cfg.Exchange, s.cfg.ExchangeType, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: declare exchange %q: %w", s.cfg.Exchange, err)
	}

	s.conn = conn
	s.ch = ch
	s.log.Info("connected to broker",
		zap.String("exchange", s.cfg.Exchange),
		zap.String("exchange_type", s.cfg.ExchangeType),
	)
	return nil
}

func (s *RabbitMQSink) resetLocked() {
	if s.ch != nil {
		_ = s.ch.Close()
		s.ch = nil
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *RabbitMQSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.ch != nil {
		if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		s.ch = nil
	}
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, err)
		}
		s.conn = nil
	}
	return errors.Join(errs...)
}
