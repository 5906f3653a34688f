package observability

import (
	"github.com/smallbiznis/societyops/internal/observability/logger"
	"github.com/smallbiznis/societyops/internal/observability/metrics"
	"github.com/smallbiznis/societyops/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
		logger.New,
		tracing.NewProvider,
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	// Both are consumed lazily; invoking them installs the global tracer and
	// registers the scheduler collectors before the first job runs.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
	fx.Invoke(func(cfg metrics.Config) { metrics.SchedulerWithConfig(cfg) }),
)
