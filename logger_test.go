package aeris

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLoggerDefaultsToInfoLevel(t *testing.T) {
	l := NewLogger(false)
	assert.NotNil(t, l)
	assert.NotNil(t, l.sugar)
	assert.True(t, l.sugar.Desugar().Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestNewLoggerDebugModeEnablesDebugLevel(t *testing.T) {
	l := NewLogger(true)
	assert.NotNil(t, l)
	assert.True(t, l.sugar.Desugar().Core().Enabled(zapcore.DebugLevel))
}

func TestLoggerLevelMethodsDoNotPanic(t *testing.T) {
	l := NewLogger(true)
	assert.NotPanics(t, func() {
		l.Debug("starting up")
		l.Infof("listening on %s", "localhost:8080")
		l.Warnw("slow request", "path", "/cats", "duration_ms", 120)
		l.Error("handler failed")
	})
}
