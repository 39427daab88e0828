package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		env       string
		wantDebug bool
	}{
		{env: "dev", wantDebug: true},
		{env: "prod", wantDebug: false},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			var buf bytes.Buffer
			log := newLogger(&buf, tt.env)
			log.Debug("debug line")
			assert.Equal(t, tt.wantDebug, buf.Len() > 0)
		})
	}
}

func TestLogger_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(&buf, "prod").With("component", "test")

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	log.InfoContext(ctx, "traced")
	line := decodeLine(t, &buf)
	assert.Equal(t, "traced", line["msg"])
	assert.Equal(t, "test", line["component"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", line["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", line["span_id"])
	assert.Equal(t, true, line["trace_sampled"])

	buf.Reset()
	log.Info("untraced")
	line = decodeLine(t, &buf)
	assert.NotContains(t, line, "trace_id")
}
