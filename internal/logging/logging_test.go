package logging

import (
	"testing"

	"github.com/safar/shopcraft/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_respectsLevel(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestNew_consoleFormat(t *testing.T) {
	logger, err := New(config.LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestNew_rejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
