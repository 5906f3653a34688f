package tracing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/smallbiznis/societyops/internal/apperr"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsResidentData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/flats/:id"),
		attribute.String("resident_name", "someone"),
		attribute.String("contact_number", "9999"),
	)
	assert.Equal(t, []attribute.KeyValue{attribute.String("http.route", "/api/flats/:id")}, attrs)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	wrapped := fmt.Errorf("create: %w", apperr.New(apperr.KindConflict, "flat_not_vacant", "flat A-101 for Jane"))
	assert.EqualError(t, SafeError(wrapped), "conflict: flat_not_vacant")

	assert.EqualError(t, SafeError(errors.New("pq: password for user x")), "internal_error")
}

func TestSamplingRatioClamp(t *testing.T) {
	assert.Equal(t, 0.0, samplingRatio(-1))
	assert.Equal(t, 1.0, samplingRatio(3))
	assert.Equal(t, 0.25, samplingRatio(0.25))
}
