package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "debug", Format: "json", Output: &buf})

	l.Debug("overview built", "admin_id", "admin-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "overview built", line["msg"])
	assert.Equal(t, "admin-1", line["admin_id"])
}

func TestNewTextFormatHasNoColourOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := New(Options{Level: "info", Output: &buf})

	l.Debug("hidden")
	l.Warn("orphaned attendance record", "error", errors.New("member missing"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "orphaned attendance record")
	assert.Contains(t, out, "member missing")
	assert.False(t, strings.Contains(out, "\x1b["), "unexpected ANSI escape in %q", out)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
