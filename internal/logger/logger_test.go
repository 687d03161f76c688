package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Config{}.SlogLevel())
	assert.Equal(t, slog.LevelDebug, Config{Level: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{Level: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{Level: "warning"}.SlogLevel())
	assert.Equal(t, slog.LevelError, Config{Level: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Config{Level: "bogus"}.SlogLevel())
}

func TestWriterNilWithoutDestination(t *testing.T) {
	assert.Nil(t, Config{}.Writer())
}

func TestWriterUsesDirDefaultName(t *testing.T) {
	dir := t.TempDir()
	w := Config{Dir: dir}.Writer()
	require.NotNil(t, w)
	defer func() { _ = w.Close() }()

	_, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "opsgate.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}

func TestSetupWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engine.log")

	closeLog := Setup(Config{Path: path, Level: "debug"})
	slog.Info("logger configured", "component", "test")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "logger configured")
	assert.Contains(t, string(data), "component=test")
}
