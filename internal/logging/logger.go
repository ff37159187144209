package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFile = "healthgate.log"

// NewLogger writes JSON logs to a rotating file in logDir. An empty logDir
// logs to stderr instead, which suits containers.
func NewLogger(logDir, level string) (*zap.Logger, error) {
	lvl := zap.InfoLevel
	if level != "" {
		parsed, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		lvl = parsed
	}

	var w zapcore.WriteSyncer
	if logDir == "" {
		w = zapcore.Lock(os.Stderr)
	} else {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return nil, err
		}
		w = zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, logFile),
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		})
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, lvl)
	return zap.New(core, zap.AddCaller()), nil
}
