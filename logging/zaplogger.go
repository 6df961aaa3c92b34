package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// callerSkip hides the package level helpers and the adapter itself from
// zap's caller annotation.
const callerSkip = 2

var nopLogger Logger = zapLogger{zap.NewNop().Sugar()}

// NewDevLogger returns a console logger at debug level.
func NewDevLogger() Logger {
	l, err := zap.NewDevelopment(zap.AddCallerSkip(callerSkip))
	if err != nil {
		return nopLogger
	}
	return zapLogger{l.Sugar()}
}

// NewProdLogger returns a JSON logger at info level.
func NewProdLogger() Logger {
	l, err := zap.NewProduction(zap.AddCallerSkip(callerSkip))
	if err != nil {
		return nopLogger
	}
	return zapLogger{l.Sugar()}
}

// NewLevelLogger returns a JSON logger writing at or above level, one of
// debug, info, warn or error.
func NewLevelLogger(level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build(zap.AddCallerSkip(callerSkip))
	if err != nil {
		return nil, err
	}
	return zapLogger{l.Sugar()}, nil
}

// NewNopLogger returns a logger which discards everything.
func NewNopLogger() Logger {
	return nopLogger
}

// NewZapLogger adapts a zap logger the application already configured.
func NewZapLogger(l *zap.Logger) Logger {
	return zapLogger{l.WithOptions(zap.AddCallerSkip(callerSkip)).Sugar()}
}

type zapLogger struct {
	s *zap.SugaredLogger
}

func (z zapLogger) Debugw(msg string, kv ...interface{}) { z.s.Debugw(msg, kv...) }
func (z zapLogger) Infow(msg string, kv ...interface{})  { z.s.Infow(msg, kv...) }
func (z zapLogger) Warnw(msg string, kv ...interface{})  { z.s.Warnw(msg, kv...) }
func (z zapLogger) Errorw(msg string, kv ...interface{}) { z.s.Errorw(msg, kv...) }

func (z zapLogger) Named(name string) Logger {
	return zapLogger{z.s.Named(name)}
}

func (z zapLogger) With(kv ...interface{}) Logger {
	return zapLogger{z.s.With(kv...)}
}
