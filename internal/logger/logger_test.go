package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_ConsoleOnly(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &out

	log, err := NewLogger(cfg)
	require.NoError(t, err)

	WithFileOperation(log, "a.jpg", "compress").Info("shrunk")
	assert.Contains(t, out.String(), "shrunk")
	assert.Contains(t, out.String(), "file=a.jpg")
	assert.Contains(t, out.String(), "operation=compress")
}

func TestNewLogger_FileSinkIsJSON(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &out
	cfg.FilePath = filepath.Join(t.TempDir(), "logs", "media-shrink.log")

	log, err := NewLogger(cfg)
	require.NoError(t, err)

	WithFile(log, "b.png").Warn("best effort")

	raw, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(raw), &entry))
	assert.Equal(t, "best effort", entry["message"])
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "b.png", entry["file"])
	assert.Contains(t, out.String(), "best effort")
}

func TestNewLogger_QuietConsoleWithFile(t *testing.T) {
	var out bytes.Buffer
	cfg := DefaultConfig()
	cfg.Output = &out
	cfg.Console = false
	cfg.FilePath = filepath.Join(t.TempDir(), "media-shrink.log")

	log, err := NewLogger(cfg)
	require.NoError(t, err)
	log.Info("only in file")

	assert.Empty(t, out.String())
}

func TestNewLogger_BadLevel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Level = "chatty"
	_, err := NewLogger(cfg)
	assert.Error(t, err)
}
