package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesRotatingJSONFile(t *testing.T) {
	dir := t.TempDir()
	l := New("info", dir)
	l.Info("ping", "n", 1)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.GreaterOrEqual(t, len(lines), 2, "startup line plus the ping")

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "radiationMap starting", first["msg"])

	var last map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "ping", last["msg"])
	assert.EqualValues(t, 1, last["n"])
}

func TestNewLevelGate(t *testing.T) {
	dir := t.TempDir()
	l := New("error", dir)
	l.Info("quiet")

	// nothing reached the handler yet, so the file does not exist
	_, err := os.Stat(filepath.Join(dir, FileName))
	assert.True(t, os.IsNotExist(err))

	l.Error("loud")
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "loud")
	assert.NotContains(t, string(data), "quiet")
}

func TestNewStderrFallback(t *testing.T) {
	// no directory and a bogus level still yield a usable logger
	l := New("bogus", "")
	require.NotNil(t, l)
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo), "info stays enabled")
}
