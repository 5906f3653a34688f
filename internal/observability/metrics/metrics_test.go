package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("flat_number", "A-101"),
		attribute.String("payment_method", "cash"),
		attribute.String("resident_name", "someone"),
		attribute.String("status", "paid"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("payment_method"), attrs[0].Key)
	assert.Equal(t, attribute.Key("status"), attrs[1].Key)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{}, noop.NewMeterProvider())
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordAssignment(ctx, "created", "owner_occupied")
	m.RecordPayment(ctx, "cash", "paid", true)
	m.RecordPaymentTransition(ctx, "pending", "paid")
	m.RecordEventRelayed(ctx, "payment.recorded", "published")

	var nilMetrics *Metrics
	nilMetrics.RecordPayment(ctx, "cash", "paid", false)
}
