package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestFromContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "json")

	ctx := WithRequestID(context.Background(), "req-123")
	FromContext(ctx, logger).Info("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-123", line["request_id"])
	assert.Equal(t, "hello", line["msg"])
}

func TestFromContextWithoutRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "debug", "json")

	FromContext(context.Background(), logger).Debug("plain")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, "request_id")
}
