// Package logger builds the structured logger shared by the CLI, TUI and
// MCP server. Attribute values that look like credentials are redacted.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects level, format and destination.
type Config struct {
	Level   string // debug|info|warn|error; RAG_LOG_LEVEL overrides when set
	Format  string // text|json
	Output  io.Writer
	Verbose bool // forces debug
}

// New returns a slog logger writing to cfg.Output (stderr by default).
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	level := cfg.Level
	if v := os.Getenv("RAG_LOG_LEVEL"); v != "" {
		level = v
	}
	lvl := ParseLevel(level)
	if cfg.Verbose {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl, ReplaceAttr: replaceAttr}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var secretKeys = []string{"key", "token", "secret", "password", "authorization", "bearer"}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	lowerK := strings.ToLower(a.Key)
	for _, p := range secretKeys {
		if strings.Contains(lowerK, p) {
			return slog.String(a.Key, redact(s))
		}
	}
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return slog.String(a.Key, "Bearer "+redact(s[len("bearer "):]))
	}
	if strings.HasPrefix(s, "sk-") {
		return slog.String(a.Key, redact(s))
	}
	return a
}

func redact(s string) string {
	n := len(s)
	if n <= 8 {
		return "***"
	}
	return fmt.Sprintf("%s***%s", s[:4], s[n-4:])
}
