package hlog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONHandlerWritesComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New("worker-0", WithOutput(&buf), WithHandler(JSONHandler))
	logger.Info("started", "port", 8080)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "worker-0", entry["component"])
	assert.Equal(t, "started", entry["msg"])
	assert.Equal(t, float64(8080), entry["port"])
}

func TestNew_TextHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New("compiler", WithOutput(&buf), WithHandler(TextHandler))
	logger.Warn("slow compile")

	out := buf.String()
	assert.True(t, strings.Contains(out, "component=compiler"))
	assert.True(t, strings.Contains(out, "slow compile"))
}

func TestNew_LevelFiltersBelowThreshold(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New("worker", WithOutput(&buf), WithLevel(slog.LevelWarn))
	logger.Info("ignored")
	logger.Warn("kept")

	out := buf.String()
	assert.False(t, strings.Contains(out, "ignored"))
	assert.True(t, strings.Contains(out, "kept"))
}

func TestNoop_DiscardsOutput(t *testing.T) {
	t.Parallel()

	logger := Noop()
	require.NotPanics(t, func() {
		logger.Info("anything")
	})
}
