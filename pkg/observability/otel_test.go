package observability

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestInitOTel_Disabled(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	providers, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)

	require.NoError(t, err)
	assert.Nil(t, providers)
}

func TestInitOTel_DisabledLogsReason(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(InfoLevel, buf)

	_, err := InitOTel(context.Background(), OTelConfig{Enabled: false}, logger)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "OpenTelemetry is disabled")
}

// OTLP gRPC exporters do not validate the connection at creation time, so
// initialization succeeds even when no collector is listening. Export
// failures surface later, at flush/shutdown.
func TestInitOTel_CollectorUnreachable(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	cfg := OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:9999",
		ServiceName:    "lantern-api",
		ServiceVersion: "1.0.0",
		Insecure:       true,
	}

	providers, err := InitOTel(context.Background(), cfg, logger)

	require.NoError(t, err)
	require.NotNil(t, providers)
	assert.NotNil(t, providers.TracerProvider)
	assert.NotNil(t, providers.MeterProvider)

	_ = ShutdownOTel(context.Background(), providers, logger)
}

func TestInitOTel_Config(t *testing.T) {
	tests := []struct {
		name          string
		cfg           OTelConfig
		wantProviders bool
	}{
		{
			name:          "disabled returns nil providers",
			cfg:           OTelConfig{Enabled: false},
			wantProviders: false,
		},
		{
			name: "enabled with endpoint",
			cfg: OTelConfig{
				Enabled:        true,
				Endpoint:       "localhost:4317",
				ServiceName:    "lantern-api",
				ServiceVersion: "1.0.0",
				Insecure:       true,
			},
			wantProviders: true,
		},
		{
			name: "empty service name still initializes",
			cfg: OTelConfig{
				Enabled:  true,
				Endpoint: "localhost:4317",
				Insecure: true,
			},
			wantProviders: true,
		},
		{
			name: "empty service version still initializes",
			cfg: OTelConfig{
				Enabled:     true,
				Endpoint:    "localhost:4317",
				ServiceName: "lantern-sync",
				Insecure:    true,
			},
			wantProviders: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(InfoLevel, &bytes.Buffer{})
			providers, err := InitOTel(context.Background(), tt.cfg, logger)

			require.NoError(t, err)
			if tt.wantProviders {
				assert.NotNil(t, providers)
			} else {
				assert.Nil(t, providers)
			}

			if providers != nil {
				_ = ShutdownOTel(context.Background(), providers, logger)
			}
		})
	}
}

func TestShutdownOTel_NilProviders(t *testing.T) {
	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	assert.NoError(t, ShutdownOTel(context.Background(), nil, logger))

	providers := &OTelProviders{TracerProvider: nil, MeterProvider: nil}
	assert.NoError(t, ShutdownOTel(context.Background(), providers, logger))
}

func TestShutdownOTel_WithTracerProvider(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(InfoLevel, buf)

	providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}

	err := ShutdownOTel(context.Background(), providers, logger)

	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Shutting down OpenTelemetry providers")
	assert.Contains(t, buf.String(), "Tracer provider shutdown complete")
}

func TestShutdownOTel_TimeoutContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}

	assert.NoError(t, ShutdownOTel(ctx, providers, logger))
}

func TestShutdownOTel_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	logger := NewLogger(InfoLevel, &bytes.Buffer{})
	providers := &OTelProviders{TracerProvider: sdktrace.NewTracerProvider()}

	// Completes either way; a provider with no pending spans has nothing to
	// flush, so cancellation may or may not surface as an error.
	_ = ShutdownOTel(ctx, providers, logger)
}

func TestUpdateLoggerWithTraceContext_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	updated := UpdateLoggerWithTraceContext(context.Background(), logger)
	require.NotNil(t, updated)

	updated.Info("checking access")
	entry := decodeEntry(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestUpdateLoggerWithTraceContext_RecordingSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	tracer := tp.Tracer("lantern-test")

	ctx, span := tracer.Start(context.Background(), "access.check")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	updated := UpdateLoggerWithTraceContext(ctx, logger)
	require.NotNil(t, updated)

	updated.Info("checking access")
	entry := decodeEntry(t, &buf)

	traceID, ok := entry["trace_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, traceID)

	spanID, ok := entry["span_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, spanID)
}

func TestUpdateLoggerWithTraceContext_NonRecordingSpan(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
	tracer := tp.Tracer("lantern-test")

	ctx, span := tracer.Start(context.Background(), "access.check")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	updated := UpdateLoggerWithTraceContext(ctx, logger)
	require.NotNil(t, updated)

	updated.Info("checking access")
	entry := decodeEntry(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestUpdateLoggerWithTraceContext_PreservesFields(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	tracer := tp.Tracer("lantern-test")

	ctx, span := tracer.Start(context.Background(), "profile.upsert")
	defer span.End()

	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf).
		WithField("user_email", "alice@example.com").
		WithField("attempt", 2)

	updated := UpdateLoggerWithTraceContext(ctx, logger)
	require.NotNil(t, updated)

	updated.Info("updating profile")
	entry := decodeEntry(t, &buf)

	assert.Equal(t, "alice@example.com", entry["user_email"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Contains(t, entry, "trace_id")
	assert.Contains(t, entry, "span_id")
}

func TestUpdateLoggerWithTraceContext_NestedSpans(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	tracer := tp.Tracer("lantern-test")

	ctx, outer := tracer.Start(context.Background(), "sync.run")
	defer outer.End()

	var outerBuf bytes.Buffer
	UpdateLoggerWithTraceContext(ctx, NewLogger(InfoLevel, &outerBuf)).Info("run started")
	outerEntry := decodeEntry(t, &outerBuf)

	ctx, inner := tracer.Start(ctx, "sync.scan")
	defer inner.End()

	var innerBuf bytes.Buffer
	UpdateLoggerWithTraceContext(ctx, NewLogger(InfoLevel, &innerBuf)).Info("scan started")
	innerEntry := decodeEntry(t, &innerBuf)

	// Nested spans share a trace but carry their own span IDs.
	assert.Equal(t, outerEntry["trace_id"], innerEntry["trace_id"])
	assert.NotEqual(t, outerEntry["span_id"], innerEntry["span_id"])
}

type stubSpan struct {
	trace.Span
	recording bool
	spanCtx   trace.SpanContext
}

func (s *stubSpan) IsRecording() bool { return s.recording }

func (s *stubSpan) SpanContext() trace.SpanContext { return s.spanCtx }

func TestUpdateLoggerWithTraceContext_InvalidSpanContext(t *testing.T) {
	ctx := trace.ContextWithSpan(context.Background(), &stubSpan{
		recording: false,
		spanCtx:   trace.SpanContext{},
	})

	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	updated := UpdateLoggerWithTraceContext(ctx, logger)
	require.NotNil(t, updated)

	updated.Info("noop span")
	entry := decodeEntry(t, &buf)
	assert.NotContains(t, entry, "trace_id")
}

func TestUpdateLoggerWithTraceContext_NilLogger(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("UpdateLoggerWithTraceContext panicked with nil logger: %v", r)
		}
	}()

	result := UpdateLoggerWithTraceContext(context.Background(), nil)
	assert.Nil(t, result)
}

func TestInitOTel_FullInitialization(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping full initialization test in short mode")
	}

	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	cfg := OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:4317",
		ServiceName:    "lantern-api",
		ServiceVersion: "1.0.0",
		Insecure:       true,
	}

	providers, err := InitOTel(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)
	require.NotNil(t, providers.TracerProvider)
	require.NotNil(t, providers.MeterProvider)

	// The global tracer provider should now produce recording spans.
	tracer := otel.Tracer("lantern-test")
	ctx, span := tracer.Start(context.Background(), "document.fetch")
	assert.True(t, span.IsRecording())
	span.End()

	updated := UpdateLoggerWithTraceContext(ctx, logger)
	assert.NotNil(t, updated)

	// Without a collector the final flush can time out; shutdown still
	// completes.
	_ = ShutdownOTel(context.Background(), providers, logger)
}

func TestInitOTel_PropagatorConfigured(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping propagator test in short mode")
	}

	original := otel.GetTextMapPropagator()
	defer otel.SetTextMapPropagator(original)

	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	cfg := OTelConfig{
		Enabled:        true,
		Endpoint:       "localhost:4317",
		ServiceName:    "lantern-api",
		ServiceVersion: "1.0.0",
		Insecure:       true,
	}

	providers, err := InitOTel(context.Background(), cfg, logger)
	require.NoError(t, err)
	require.NotNil(t, providers)

	assert.NotNil(t, otel.GetTextMapPropagator())

	_ = ShutdownOTel(context.Background(), providers, logger)
}

func BenchmarkUpdateLoggerWithTraceContext(b *testing.B) {
	tp := sdktrace.NewTracerProvider()
	tracer := tp.Tracer("lantern-test")

	ctx, span := tracer.Start(context.Background(), "access.check")
	defer span.End()

	logger := NewLogger(InfoLevel, &bytes.Buffer{})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = UpdateLoggerWithTraceContext(ctx, logger)
	}
}
