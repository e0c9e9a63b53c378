package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewConfig(t *testing.T) {
	cfg := NewConfig(false)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level.Level())
	assert.Equal(t, "console", cfg.Encoding)
	assert.True(t, cfg.DisableStacktrace)

	assert.Equal(t, zapcore.DebugLevel, NewConfig(true).Level.Level())
}

func TestNew(t *testing.T) {
	logger, err := New("stylize", true)
	require.NoError(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNewObserved(t *testing.T) {
	logger, logs := NewObserved(zapcore.InfoLevel)
	logger.Debugw("hidden")
	logger.Infow("checkpoint", "run", 50)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "checkpoint", entry.Message)
	assert.Equal(t, int64(50), entry.ContextMap()["run"])
}
