package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewZapLoggerWritesLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "update.log")
	logger, err := NewZapLogger("debug", path)
	require.NoError(t, err)
	logger.Debug("robot renamed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "robot renamed")
}

func TestNewZapLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := NewZapLogger("loud", "")
	require.Error(t, err)
}
