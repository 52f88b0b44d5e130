package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xid.log")

	log, closeFn, err := New(Config{Level: "debug", Format: "json", OutputFile: path})
	require.NoError(t, err)
	log.Debug("Ledger ready")
	log.Info("Ledger closed")
	require.NoError(t, closeFn())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "DEBUG", entry["level"])
	require.Equal(t, "Ledger ready", entry["msg"])
	require.Equal(t, "xidledger", entry["service"])
}

func TestNew_LevelFilteringAndService(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xid.log")

	log, closeFn, err := New(Config{Level: "warn", OutputFile: path, Service: "xidctl"})
	require.NoError(t, err)
	log.Info("dropped")
	log.Warn("kept")
	require.NoError(t, closeFn())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "dropped")
	require.Contains(t, string(raw), `"service":"xidctl"`)
}

func TestNew_UnknownLevelDefaultsToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "xid.log")

	log, closeFn, err := New(Config{Level: "chatty", Format: "console", OutputFile: path})
	require.NoError(t, err)
	log.Debug("dropped")
	log.Info("kept")
	require.NoError(t, closeFn())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "dropped")
	require.Contains(t, string(raw), "kept")
}

func TestNew_BadOutputFile(t *testing.T) {
	_, _, err := New(Config{OutputFile: filepath.Join(t.TempDir(), "no", "such", "dir.log")})
	require.Error(t, err)
}
