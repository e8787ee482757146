package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	l, err := New(Config{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)

	var buf bytes.Buffer
	l.SetOutput(&buf)
	Component(l, "pricing").Info("selected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "selected", entry["message"])
	assert.Equal(t, "pricing", entry["component"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_InvalidSettings(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	_, err := New(Config{Level: "loud", Format: "text"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNew_EnvOverridesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	l, err := New(Config{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "warning", l.GetLevel().String())
}

func TestNew_FileOutput(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	path := filepath.Join(t.TempDir(), "engine.log")
	l, err := New(Config{Level: "info", Format: "text", Output: path})
	require.NoError(t, err)

	l.Info("written")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "written"))
}

func TestComponent_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		Component(nil, "x").Warn("dropped")
	})
}
