package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphfold/graphfold/pkg/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, logger.ParseLevel(tt.in), "level %q", tt.in)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "json")

	log.Info("entity resolved", "outcome", "merge", "score", 0.93)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "entity resolved", line["msg"])
	assert.Equal(t, "merge", line["outcome"])
	assert.InDelta(t, 0.93, line["score"], 1e-9)
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "warn", "text")

	log.Info("quiet")
	assert.Empty(t, buf.String())

	log.Warn("loud")
	assert.Contains(t, buf.String(), "loud")
}

func TestUnknownFormatFallsBackToText(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, "info", "fancy")

	log.Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
}
