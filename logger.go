package aeris

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap.SugaredLogger with the level-named surface the
// teacher's own hand-rolled Logger exposed (Debug/Info/Warn/Error, each
// with an f-formatted and a structured-fields variant, plus Fatal and
// Fatalf), so call sites
// read the same way while the implementation is a real structured logger.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger builds a Logger. debug widens the minimum level to Debug;
// otherwise Info and above are emitted. Output is always structured JSON,
// matching the teacher's JSON-first LogFormat default.
func NewLogger(debug bool) *Logger {
	level := zapcore.InfoLevel
	if debug {
		level = zapcore.DebugLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.MessageKey = "message"

	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		base = zap.NewNop()
	}
	return &Logger{sugar: base.Sugar()}
}

func (l *Logger) Sync() error { return l.sugar.Sync() }

func (l *Logger) Debug(args ...interface{})          { l.sugar.Debug(args...) }
func (l *Logger) Debugf(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Debugw(msg string, kv ...interface{})       { l.sugar.Debugw(msg, kv...) }

func (l *Logger) Info(args ...interface{})          { l.sugar.Info(args...) }
func (l *Logger) Infof(format string, args ...interface{}) { l.sugar.Infof(format, args...) }
func (l *Logger) Infow(msg string, kv ...interface{})       { l.sugar.Infow(msg, kv...) }

func (l *Logger) Warn(args ...interface{})          { l.sugar.Warn(args...) }
func (l *Logger) Warnf(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }
func (l *Logger) Warnw(msg string, kv ...interface{})       { l.sugar.Warnw(msg, kv...) }

func (l *Logger) Error(args ...interface{})          { l.sugar.Error(args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }
func (l *Logger) Errorw(msg string, kv ...interface{})       { l.sugar.Errorw(msg, kv...) }

func (l *Logger) Fatal(args ...interface{})          { l.sugar.Fatal(args...) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.sugar.Fatalf(format, args...) }
