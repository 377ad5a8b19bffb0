package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process-wide structured logger. Production output is JSON;
// setting FALCON_DEBUG=1 switches to a human-readable console encoder, the
// same opt-in pattern the teacher uses for its local dev logging.
func New() *zap.SugaredLogger {
	level := zapcore.InfoLevel
	encoding := "json"
	if os.Getenv("FALCON_DEBUG") == "1" {
		level = zapcore.DebugLevel
		encoding = "console"
	}
	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         encoding,
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, err := cfg.Build()
	if err != nil {
		// Fall back to a bare production logger rather than crash the
		// process over a logging misconfiguration.
		logger = zap.NewExample()
	}
	return logger.Sugar()
}

// WithFields flattens Fields onto a SugaredLogger, returning a child logger
// with those attributes attached to every subsequent call.
func WithFields(l *zap.SugaredLogger, f Fields) *zap.SugaredLogger {
	return l.With(f.KeysAndValues()...)
}
