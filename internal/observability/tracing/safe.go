package tracing

import (
	"context"
	"errors"

	"github.com/smallbiznis/societyops/internal/apperr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Resident names and contact details must never reach span attributes.
var blockedAttributeKeys = map[attribute.Key]struct{}{
	"resident_name":  {},
	"contact_number": {},
	"email":          {},
	"notes":          {},
	"bank_name":      {},
	"cheque_number":  {},
}

// SafeAttributes drops attributes that may carry resident personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces an error to its classification so free-form messages stay out of traces.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if appErr, ok := apperr.As(err); ok {
		return errors.New(string(appErr.Kind) + ": " + appErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return errors.New("internal_error")
}

// ExtractContext pulls upstream trace context from the carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	if carrier == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
