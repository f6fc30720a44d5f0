package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestVerbosityToLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, VerbosityToLevel(0))
	assert.Equal(t, zapcore.InfoLevel, VerbosityToLevel(1))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(2))
	assert.Equal(t, zapcore.DebugLevel, VerbosityToLevel(5))
}

func TestInitializeConsole(t *testing.T) {
	require.NoError(t, Initialize(false, 1))
	require.NotNil(t, Logger)
	assert.False(t, JSONOutput)

	// Package helpers must not panic once initialized
	Infow("test message", FieldSource, "gazetteer")
	Cleanup()
}

func TestInitializeJSON(t *testing.T) {
	require.NoError(t, Initialize(true, 0))
	assert.True(t, JSONOutput)
	Cleanup()
}

func TestHelpersNilSafeBeforeInitialize(t *testing.T) {
	// The init() no-op logger keeps these from panicking
	Info("hello")
	Infof("hello %s", "world")
	Warnw("warn", "k", "v")
	Errorw("err", "k", "v")
	Debugw("dbg", "k", "v")
}
