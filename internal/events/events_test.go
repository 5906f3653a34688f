package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/societyops/internal/clock"
	maintenancedomain "github.com/smallbiznis/societyops/internal/maintenance/domain"
	"github.com/smallbiznis/societyops/internal/migration/migrationtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type recordingSink struct {
	failUntil int
	calls     int
	sent      []Message
}

func (s *recordingSink) Send(_ context.Context, msg Message) error {
	s.calls++
	if s.calls <= s.failUntil {
		return errors.New("broker unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSink) Close() error { return nil }

type fixture struct {
	db     *gorm.DB
	clock  *clock.FakeClock
	outbox *Outbox
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC))
	return fixture{
		db:     migrationtest.Open(t),
		clock:  clk,
		outbox: NewOutbox(OutboxParams{Log: zap.NewNop(), GenID: node, Clock: clk}),
	}
}

func (f fixture) relay(sink Sink, maxAttempts int) *Relay {
	return &Relay{
		db:          f.db,
		log:         zap.NewNop(),
		clock:       f.clock,
		sink:        sink,
		maxAttempts: maxAttempts,
		newBackOff:  func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
}

func samplePayment(id int64, status maintenancedomain.PaymentStatus) maintenancedomain.Payment {
	return maintenancedomain.Payment{
		ID:            snowflake.ID(id),
		FlatNumber:    "A-101",
		PaymentMonth:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		BaseAmount:    decimal.NewFromInt(2500),
		PenaltyAmount: decimal.Zero,
		TotalAmount:   decimal.NewFromInt(2500),
		PaymentDate:   time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		PaymentMethod: maintenancedomain.MethodCash,
		Status:        status,
		ReceiptNumber: "RCP-1",
		CreatedBy:     "admin",
	}
}

func (f fixture) publish(t *testing.T, events ...Event) {
	t.Helper()
	err := f.db.Transaction(func(tx *gorm.DB) error {
		for _, e := range events {
			if err := f.outbox.Publish(context.Background(), tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestOutboxPublishAndDecode(t *testing.T) {
	f := newFixture(t)
	f.publish(t, PaymentStatusChanged{
		Payment: samplePayment(42, maintenancedomain.StatusPaid),
		From:    maintenancedomain.StatusPending,
		To:      maintenancedomain.StatusPaid,
	})

	records, err := ListRecords(context.Background(), f.db, RecordPending, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, TypePaymentStatusChanged, records[0].EventType)
	assert.Equal(t, AggregatePayment, records[0].AggregateType)
	assert.Equal(t, "42", records[0].AggregateID)
	assert.Equal(t, 0, records[0].Attempts)

	event, err := Decode(records[0])
	require.NoError(t, err)
	changed, ok := event.(PaymentStatusChanged)
	require.True(t, ok)
	assert.Equal(t, maintenancedomain.StatusPending, changed.From)
	assert.Equal(t, maintenancedomain.StatusPaid, changed.To)
	assert.Equal(t, "RCP-1", changed.Payment.ReceiptNumber)
	assert.True(t, changed.Payment.TotalAmount.Equal(decimal.NewFromInt(2500)))
}

func TestOutboxRollsBackWithTransaction(t *testing.T) {
	f := newFixture(t)
	err := f.db.Transaction(func(tx *gorm.DB) error {
		require.NoError(t, f.outbox.Publish(context.Background(), tx, PaymentCreated{Payment: samplePayment(1, maintenancedomain.StatusPending)}))
		return errors.New("abort")
	})
	require.Error(t, err)

	records, err := ListRecords(context.Background(), f.db, "", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode(Record{EventType: "flat.painted", Payload: []byte(`{}`)})
	require.ErrorIs(t, err, ErrUnknownEventType)
}

func TestRelayPublishesInOrder(t *testing.T) {
	f := newFixture(t)
	f.publish(t,
		PaymentCreated{Payment: samplePayment(1, maintenancedomain.StatusPending)},
		PaymentStatusChanged{Payment: samplePayment(1, maintenancedomain.StatusPaid), From: maintenancedomain.StatusPending, To: maintenancedomain.StatusPaid},
	)

	sink := &recordingSink{}
	result, err := f.relay(sink, 5).RelayPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, RelayResult{Published: 2}, result)
	require.Len(t, sink.sent, 2)
	assert.Equal(t, TypePaymentCreated, sink.sent[0].Type)
	assert.Equal(t, TypePaymentStatusChanged, sink.sent[1].Type)

	pending, err := ListRecords(context.Background(), f.db, RecordPending, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	published, err := ListRecords(context.Background(), f.db, RecordPublished, 0)
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.Equal(t, 1, published[0].Attempts)
	require.NotNil(t, published[0].PublishedAt)
}

func TestRelayRetriesWithinRun(t *testing.T) {
	f := newFixture(t)
	f.publish(t, PaymentCreated{Payment: samplePayment(1, maintenancedomain.StatusPending)})

	sink := &recordingSink{failUntil: sendTriesPerRun - 1}
	result, err := f.relay(sink, 5).RelayPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Published)
	assert.Equal(t, sendTriesPerRun, sink.calls)
}

func TestRelayStopsAtFailureAndParksAfterMaxAttempts(t *testing.T) {
	f := newFixture(t)
	f.publish(t,
		PaymentCreated{Payment: samplePayment(1, maintenancedomain.StatusPending)},
		PaymentCreated{Payment: samplePayment(2, maintenancedomain.StatusPending)},
	)

	sink := &recordingSink{failUntil: 1 << 30}
	relay := f.relay(sink, 2)

	result, err := relay.RelayPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, RelayResult{Deferred: 2}, result)

	pending, err := ListRecords(context.Background(), f.db, RecordPending, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 1, pending[0].Attempts)
	require.NotNil(t, pending[0].LastError)
	assert.Contains(t, *pending[0].LastError, "broker unavailable")
	assert.Equal(t, 0, pending[1].Attempts)

	sink.failUntil = sink.calls + sendTriesPerRun
	result, err = relay.RelayPending(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, RelayResult{Published: 1, Failed: 1}, result)

	failed, err := ListRecords(context.Background(), f.db, RecordFailed, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "1", failed[0].AggregateID)
	assert.Equal(t, 2, failed[0].Attempts)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, "2", sink.sent[0].AggregateID)
}

func TestLogSinkAcceptsUndecodableMessages(t *testing.T) {
	sink := NewLogSink(zap.NewNop())
	require.NoError(t, sink.Send(context.Background(), Message{Type: "unknown", Payload: []byte(`{}`)}))
	require.NoError(t, sink.Close())
}
