package otelx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")
	t.Setenv("DEPLOYMENT_ENV", "staging")

	cfg := ConfigFromEnv("patient-service")
	assert.Equal(t, Config{
		Enabled:     true,
		ServiceName: "patient-service",
		Environment: "staging",
		Endpoint:    "collector:4317",
		Insecure:    true,
		SampleRatio: 0.25,
	}, cfg)
}

func TestSampleRatioFallsBack(t *testing.T) {
	assert.Equal(t, 1.0, sampleRatio("7"))
	assert.Equal(t, 1.0, sampleRatio("half"))
	assert.Equal(t, 0.0, sampleRatio("0"))
}

func TestTraceContextRoundTrip(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	tc := CaptureTraceContext(ctx)
	require.False(t, tc.IsZero())
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", tc.Traceparent)

	restored := trace.SpanContextFromContext(tc.Restore(context.Background()))
	assert.Equal(t, traceID, restored.TraceID())
	assert.True(t, restored.IsRemote())

	assert.True(t, CaptureTraceContext(context.Background()).IsZero())
	assert.Equal(t, context.Background(), TraceContext{}.Restore(context.Background()))
}
