package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics configures the global OpenTelemetry MeterProvider to export to
// an OTLP/HTTP collector at endpoint on a 10s periodic interval, grounded on
// the teacher's internal/observability/otel.go. Callers obtain an
// obs.Metrics backed by this provider via obs.NewOtelMetrics(), which reads
// instruments from otel.Meter("ticketsearch"). Returns a shutdown func that
// flushes pending readings; call it before the process exits.
func InitMetrics(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpoint(endpoint), otlpmetrichttp.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("init metrics exporter: %w", err)
	}
	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}
