package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")

	log, err := New(&Config{
		Level:  "debug",
		Format: "json",
		Output: logPath,
	})
	require.NoError(t, err)

	log.Debug("test debug message", slog.String("key", "value"))
	log.Info("test info message", slog.Int("count", 3))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	lines := splitLines(data)
	require.Len(t, lines, 2)

	var first map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "DEBUG", first["level"])
	assert.Equal(t, "test debug message", first["msg"])
	assert.Equal(t, "value", first["key"])
	assert.Contains(t, first, "time")

	var second map[string]any
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "INFO", second["level"])
	assert.Equal(t, float64(3), second["count"])
}

func TestNewLevelFiltering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "app.log")

	log, err := New(&Config{
		Level:  "warn",
		Format: "json",
		Output: logPath,
	})
	require.NoError(t, err)

	log.Info("dropped")
	log.Warn("kept")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	require.Len(t, splitLines(data), 1)
}

func TestNewConsoleFormat(t *testing.T) {
	log, err := New(&Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.TimeOnly,
	})
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestWith(t *testing.T) {
	log := NewDefault()
	child := log.With("component", "queue")
	require.NotNil(t, child)
	assert.NotSame(t, log, child)
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, data[start:i])
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}
