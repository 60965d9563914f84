package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"gridengine/internal/config"
)

func TestInitDefaultsToConsoleWhenOutputIsUnset(t *testing.T) {
	Init(config.LogConfig{Level: "info"})
	assert.NotNil(t, S())
	assert.NotNil(t, L())
}

func TestInitFallsBackToInfoOnAnInvalidLevel(t *testing.T) {
	Init(config.LogConfig{Level: "not-a-real-level", Output: "console"})
	assert.NotNil(t, L())
}

func TestInitWritesToARotatedFileWhenOutputIsFile(t *testing.T) {
	Init(config.LogConfig{Level: "debug", Output: "file", File: filepath.Join(t.TempDir(), "engine.log"), MaxSize: 1})
	L().Info("test message")
}

func TestSFallsBackToADevelopmentLoggerBeforeInit(t *testing.T) {
	sugaredLogger = nil
	assert.NotNil(t, S())
}
