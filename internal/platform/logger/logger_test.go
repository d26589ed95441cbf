// Package logger_test contains tests for the logger package
package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/phrazzld/studyguide-api/internal/config"
	"github.com/phrazzld/studyguide-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogBuffer is a synchronized buffer for capturing log output in tests
type testLogBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write implements io.Writer interface for the testLogBuffer
func (b *testLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// entries decodes every JSON line written so far.
func (b *testLogBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "log line should be JSON: %s", line)
		out = append(out, entry)
	}
	return out
}

// restoreDefault puts back the slog default replaced by logger.New.
func restoreDefault(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })
}

func TestNew_LevelFiltering(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{name: "debug", level: "debug", wantDebug: true, wantInfo: true, wantWarn: true},
		{name: "info", level: "info", wantInfo: true, wantWarn: true},
		{name: "upper case warn", level: "WARN", wantWarn: true},
		{name: "error", level: "error"},
		{name: "invalid falls back to info", level: "verbose", wantInfo: true, wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restoreDefault(t)
			buf := &testLogBuffer{}

			log := logger.New(buf, tt.level)
			log.Debug("debug message")
			log.Info("info message")
			log.Warn("warn message")

			var messages []string
			for _, entry := range buf.entries(t) {
				messages = append(messages, entry["msg"].(string))
			}
			assert.Equal(t, tt.wantDebug, contains(messages, "debug message"))
			assert.Equal(t, tt.wantInfo, contains(messages, "info message"))
			assert.Equal(t, tt.wantWarn, contains(messages, "warn message"))
		})
	}
}

func TestNew_SetsDefault(t *testing.T) {
	restoreDefault(t)
	buf := &testLogBuffer{}

	logger.New(buf, "info")
	slog.Info("through default", "component", "test")

	entries := buf.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "through default", entries[0]["msg"])
	assert.Equal(t, "test", entries[0]["component"])
}

func TestSetup(t *testing.T) {
	restoreDefault(t)

	log, err := logger.Setup(config.ServerConfig{LogLevel: "debug"})

	require.NoError(t, err)
	require.NotNil(t, log)
	assert.True(t, log.Enabled(context.Background(), slog.LevelDebug))
}

func TestParseLevel(t *testing.T) {
	level, ok := logger.ParseLevel("Error")
	assert.True(t, ok)
	assert.Equal(t, slog.LevelError, level)

	level, ok = logger.ParseLevel("nonsense")
	assert.False(t, ok)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestContextLogger(t *testing.T) {
	buf := &testLogBuffer{}
	scoped := slog.New(slog.NewJSONHandler(buf, nil)).With("trace_id", "abc123")
	fallback := slog.New(slog.NewJSONHandler(&testLogBuffer{}, nil))

	ctx := logger.WithLogger(context.Background(), scoped)

	assert.Same(t, scoped, logger.FromContext(ctx))
	assert.Same(t, scoped, logger.FromContextOrDefault(ctx, fallback))
	assert.Same(t, fallback, logger.FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, slog.Default(), logger.FromContext(context.Background()))

	// A nil logger leaves the context untouched.
	assert.Same(t, fallback, logger.FromContextOrDefault(logger.WithLogger(context.Background(), nil), fallback))

	logger.FromContext(ctx).Info("scoped")
	entries := buf.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "abc123", entries[0]["trace_id"])
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
