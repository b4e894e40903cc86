package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RedactsSecrets(t *testing.T) {
	t.Setenv("RAG_LOG_LEVEL", "")
	var buf bytes.Buffer
	log := New(Config{Format: "json", Output: &buf})

	log.Info("calling backend",
		"api_key", "abcdefghijklmnop",
		"header", "Bearer 1234567890abcdef",
		"value", "sk-proj-0123456789",
		"short_token", "abc",
		"file", "notes.txt",
		"chunks", 3,
	)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "abcd***mnop", rec["api_key"])
	assert.Equal(t, "Bearer 1234***cdef", rec["header"])
	assert.Equal(t, "sk-p***6789", rec["value"])
	assert.Equal(t, "***", rec["short_token"])
	assert.Equal(t, "notes.txt", rec["file"])
	assert.Equal(t, float64(3), rec["chunks"])
}

func TestNew_Levels(t *testing.T) {
	t.Setenv("RAG_LOG_LEVEL", "")
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})
	log.Info("hidden")
	assert.Empty(t, buf.String())
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	log = New(Config{Level: "error", Verbose: true, Output: &buf})
	log.Debug("debug on")
	assert.Contains(t, buf.String(), "debug on")
}

func TestNew_EnvOverride(t *testing.T) {
	t.Setenv("RAG_LOG_LEVEL", "debug")
	var buf bytes.Buffer
	New(Config{Level: "error", Output: &buf}).Debug("from env")
	assert.Contains(t, buf.String(), "from env")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
