package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(Config{Level: "verbose"})
	assert.Error(t, err)

	_, err = New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestFileReceivesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.log")

	log, err := New(Config{Level: "debug", Format: "console", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Named("monitor").Info("Cycle complete", Int("confirmed", 2))
	_ = log.Sync() // stderr may not support sync

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"logger":"monitor"`)
	assert.Contains(t, string(data), `"confirmed":2`)
}
