// Package logging builds the structured zap logger shared by every component.
package logging

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/dyluth/warren/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a zap logger plus the sinks it opened.
type Logger struct {
	*zap.Logger
	closeFile func()
}

// New creates a logger from the logging section of warren.yml. Entries go to
// stderr and, when File is set, are appended to that file as well.
func New(cfg config.LoggingConfig) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(cfg.Format), zapcore.Lock(os.Stderr), level),
	}

	closeFile := func() {}
	if cfg.File != "" {
		sink, closer, err := zap.Open(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		closeFile = closer
		// Files are always JSON so they can be replayed with jq.
		cores = append(cores, zapcore.NewCore(newEncoder("json"), sink, level))
	}

	return &Logger{
		Logger:    zap.New(zapcore.NewTee(cores...)),
		closeFile: closeFile,
	}, nil
}

// ParseLevel maps debug, info, warn and error to zap levels.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("unknown log level: %s", s)
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// Close flushes buffered entries and releases the file sink.
func (l *Logger) Close() error {
	err := l.Sync()
	l.closeFile()
	// Syncing stderr returns EINVAL or ENOTTY on Linux.
	if err != nil && isStdioSyncError(err) {
		return nil
	}
	return err
}

func isStdioSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}

// Component returns logger tagged with the component name, or a no-op
// logger when logger is nil.
func Component(logger *zap.Logger, name string) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger.With(zap.String("component", name))
}

// Event logs an info entry carrying event_type, the shape every pipeline
// event uses.
func Event(logger *zap.Logger, eventType string, fields ...zap.Field) {
	logger.Info(strings.ReplaceAll(eventType, "_", " "),
		append([]zap.Field{zap.String("event_type", eventType)}, fields...)...)
}
