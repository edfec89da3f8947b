package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	defer SetLevel("INFO")

	SetLevel("WARN")
	Info("hidden %d", 1)
	Warn("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
	assert.Equal(t, LevelWarn, GetLevel())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel("DEBUG")
	SetFormat("json")
	defer func() {
		SetFormat("text")
		SetLevel("INFO")
	}()

	Debug("dedup hit for %s", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "dedup hit for abc", entry["msg"])
	assert.Equal(t, "debug", entry["level"])
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}
