package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"FlowTagger/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWriter_JSON(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	_, err := InitWriter(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	slog.Info("dropped")
	slog.Warn("kept", "file", "flow.log")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "flow.log", entry["file"])
}

func TestInitWriter_Rejects(t *testing.T) {
	_, err := InitWriter(config.LogConfig{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = InitWriter(config.LogConfig{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	level, err = ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}
