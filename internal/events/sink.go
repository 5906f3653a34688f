package events

import (
	"context"
	"time"

	"github.com/smallbiznis/societyops/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Message is the broker-facing form of an outbox record.
type Message struct {
	ID            string
	Type          Type
	AggregateType string
	AggregateID   string
	Payload       []byte
	OccurredAt    time.Time
}

func messageFromRecord(r Record) Message {
	return Message{
		ID:            r.ID.String(),
		Type:          r.EventType,
		AggregateType: r.AggregateType,
		AggregateID:   r.AggregateID,
		Payload:       []byte(r.Payload),
		OccurredAt:    r.OccurredAt,
	}
}

// Sink delivers relayed events outside the process.
type Sink interface {
	Send(ctx context.Context, msg Message) error
	Close() error
}

// NewSink returns a RabbitMQ sink when a broker URL is configured and a
// log sink otherwise.
func NewSink(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) Sink {
	var sink Sink
	if cfg.RabbitMQ.Enabled() {
		sink = NewRabbitMQSink(cfg.RabbitMQ, log)
	} else {
		log.Info("no broker configured, relayed events are logged only")
		sink = NewLogSink(log)
	}
	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return sink.Close()
			},
		})
	}
	return sink
}

type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log.Named("events.sink")}
}

func (s *LogSink) Send(_ context.Context, msg Message) error {
	fields := []zap.Field{
		zap.String("event_id", msg.ID),
		zap.String("event_type", string(msg.Type)),
		zap.String("aggregate_type", msg.AggregateType),
		zap.String("aggregate_id", msg.AggregateID),
		zap.Time("occurred_at", msg.OccurredAt),
	}
	event, err := Decode(Record{EventType: msg.Type, Payload: msg.Payload})
	if err != nil {
		s.log.Warn("relayed event could not be decoded", append(fields, zap.Error(err))...)
		return nil
	}
	switch e := event.(type) {
	case PaymentStatusChanged:
		fields = append(fields, zap.String("from", string(e.From)), zap.String("to", string(e.To)))
	case PaymentCreated:
		fields = append(fields, zap.String("receipt_number", e.Payment.ReceiptNumber))
	case AssignmentCreated:
		fields = append(fields, zap.String("assignment_type", string(e.Assignment.AssignmentType)))
	}
	s.log.Info("domain event", fields...)
	return nil
}

func (s *LogSink) Close() error { return nil }
