package tracing

import (
	"context"
	"os"
	"strconv"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Setup installs a global tracer provider sampling ratio of root spans.
// Spans are not exported; the provider exists so trace ids reach the logs.
// The returned function flushes and stops the provider.
func Setup(ratio float64) func(context.Context) error {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown
}

// SampleRatioFromEnv reads TRACE_SAMPLE_RATIO; values outside [0,1] fall back to 1.
func SampleRatioFromEnv() float64 {
	v, err := strconv.ParseFloat(os.Getenv("TRACE_SAMPLE_RATIO"), 64)
	if err != nil || v < 0 || v > 1 {
		return 1
	}
	return v
}
