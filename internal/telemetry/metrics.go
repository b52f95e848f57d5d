package telemetry

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
)

// SchedulerMetrics holds the scheduler instruments. Only the demo daemon
// records them, around each frame; PassesDropped, ActiveTaskGauge and
// QueuedTaskGauge are created but not recorded anywhere. Every
// histogram/counter named here mirrors one already recorded by the
// orchestrator this core was generalized from.
type SchedulerMetrics struct {
	PassDuration     metric.Float64Histogram
	LayerSize        metric.Int64Histogram
	CyclesDetected   metric.Int64Counter
	PassesDropped    metric.Int64Counter
	ActiveTaskGauge  metric.Int64UpDownCounter
	QueuedTaskGauge  metric.Int64UpDownCounter
	FramesCompleted  metric.Int64Counter
}

// InitMetrics sets up a global OTLP metrics exporter (push) and returns the
// scheduler's named instruments. A failed exporter dial degrades to noop
// instruments rather than failing the process; metrics are an ambient
// concern, never load-bearing for scheduling correctness.
func InitMetrics(ctx context.Context, service string) (shutdown func(context.Context) error, m SchedulerMetrics) {
	res, _ := sdkresource.Merge(sdkresource.Default(), sdkresource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(service),
		attribute.String("service", service),
	))

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
	if endpoint == "" {
		endpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = "localhost:4317"
	}

	ctxInit, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exp, err := otlpmetricgrpc.New(ctxInit,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithDialOption(grpc.WithInsecure()),
	)
	if err != nil {
		slog.Warn("metrics exporter init failed", "error", err)
		return func(context.Context) error { return nil }, newSchedulerMetrics()
	}

	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(10*time.Second))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	otel.SetMeterProvider(mp)
	slog.Info("metrics initialized", "endpoint", endpoint)
	return mp.Shutdown, newSchedulerMetrics()
}

func newSchedulerMetrics() SchedulerMetrics {
	meter := otel.Meter("framegraph")
	passDuration, _ := meter.Float64Histogram("framegraph_pass_duration_ms")
	layerSize, _ := meter.Int64Histogram("framegraph_layer_size")
	cycles, _ := meter.Int64Counter("framegraph_cycles_detected_total")
	dropped, _ := meter.Int64Counter("framegraph_passes_dropped_total")
	active, _ := meter.Int64UpDownCounter("framegraph_active_tasks")
	queued, _ := meter.Int64UpDownCounter("framegraph_queued_tasks")
	frames, _ := meter.Int64Counter("framegraph_frames_completed_total")
	return SchedulerMetrics{
		PassDuration:    passDuration,
		LayerSize:       layerSize,
		CyclesDetected:  cycles,
		PassesDropped:   dropped,
		ActiveTaskGauge: active,
		QueuedTaskGauge: queued,
		FramesCompleted: frames,
	}
}
