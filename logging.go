package arrowodbc

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu sync.RWMutex
	logger   = zap.NewNop()
)

// LogToStderr routes the bridge's log output to standard error. The
// verbosity scale runs from 0 (errors only) to 4 (debug); values above the
// scale clamp to debug. Safe to call more than once; the last call wins.
func LogToStderr(verbosity int) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelForVerbosity(verbosity))
	cfg.Encoding = "console"
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build()
	if err != nil {
		// Build only fails on invalid sink configuration, which ours is
		// not.
		panic(err)
	}

	SetLogger(l)
}

// SetLogger replaces the bridge's logger. Pass zap.NewNop to silence it.
func SetLogger(l *zap.Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()

	logger = l
}

func log() *zap.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()

	return logger
}

func levelForVerbosity(verbosity int) zapcore.Level {
	switch verbosity {
	case 0:
		return zapcore.ErrorLevel
	case 1:
		return zapcore.WarnLevel
	case 2:
		return zapcore.InfoLevel
	case 3:
		return zapcore.DebugLevel
	default:
		return zapcore.DebugLevel
	}
}
