package logs

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level   string
		enabled slog.Level
		wantErr bool
	}{
		{level: "debug", enabled: slog.LevelDebug},
		{level: "INFO", enabled: slog.LevelInfo},
		{level: "", enabled: slog.LevelInfo},
		{level: "warn", enabled: slog.LevelWarn},
		{level: "error", enabled: slog.LevelError},
		{level: "verbose", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, err := New(&bytes.Buffer{}, tt.level, false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Enabled(context.Background(), tt.enabled))
			assert.False(t, logger.Enabled(context.Background(), tt.enabled-1))
		})
	}
}

func TestNew_JSONAndPretty(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", false)
	require.NoError(t, err)

	logger.Info("cart saved", slog.String("cart", "user:u1"))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "cart saved", record["msg"])
	assert.Equal(t, "user:u1", record["cart"])

	buf.Reset()
	logger, err = New(&buf, "info", true)
	require.NoError(t, err)
	logger.Info("cart saved")
	assert.Contains(t, buf.String(), "msg=\"cart saved\"")
}

func TestTraceHandler_AddsSpanContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "info", false)
	require.NoError(t, err)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.With(slog.String("component", "test")).InfoContext(ctx, "traced")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", record["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", record["span_id"])
	assert.Equal(t, "test", record["component"])
}

func TestContextHelpers(t *testing.T) {
	fallback := slog.Default()
	ctx := context.Background()

	assert.Same(t, fallback, FromContext(ctx, fallback))
	assert.Empty(t, RequestID(ctx))

	scoped := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx = WithLogger(WithRequestID(ctx, "req-1"), scoped)

	assert.Same(t, scoped, FromContext(ctx, fallback))
	assert.Equal(t, "req-1", RequestID(ctx))
}
