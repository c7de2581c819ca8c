// Package logging provides the engine's structured logging interface, backed
// by go.uber.org/zap.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ILogger is the capability every engine component depends on. Components
// never import zap directly; they take an ILogger at construction and tag
// it with a "component" field.
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
	Sync() error
}

// ZapLogger implements ILogger using zap.Logger.
type ZapLogger struct {
	logger *zap.Logger
}

// NewZapLogger builds a ZapLogger at the given level ("DEBUG", "INFO",
// "WARN", "ERROR", "FATAL"), writing ISO8601-timestamped console-encoded
// entries to stdout.
func NewZapLogger(levelStr string) (*ZapLogger, error) {
	var level zapcore.Level
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = zap.DebugLevel
	case "INFO":
		level = zap.InfoLevel
	case "WARN":
		level = zap.WarnLevel
	case "ERROR":
		level = zap.ErrorLevel
	case "FATAL":
		level = zap.FatalLevel
	default:
		level = zap.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))

	return &ZapLogger{logger: logger}, nil
}

func (l *ZapLogger) fields(fields []interface{}) []zap.Field {
	zapFields := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		if i+1 >= len(fields) {
			break
		}
		key, ok := fields[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", fields[i])
		}
		zapFields = append(zapFields, zap.Any(key, fields[i+1]))
	}
	return zapFields
}

func (l *ZapLogger) Debug(msg string, fields ...interface{}) { l.logger.Debug(msg, l.fields(fields)...) }
func (l *ZapLogger) Info(msg string, fields ...interface{})  { l.logger.Info(msg, l.fields(fields)...) }
func (l *ZapLogger) Warn(msg string, fields ...interface{})  { l.logger.Warn(msg, l.fields(fields)...) }
func (l *ZapLogger) Error(msg string, fields ...interface{}) { l.logger.Error(msg, l.fields(fields)...) }
func (l *ZapLogger) Fatal(msg string, fields ...interface{}) { l.logger.Fatal(msg, l.fields(fields)...) }

func (l *ZapLogger) WithField(key string, value interface{}) ILogger {
	return &ZapLogger{logger: l.logger.With(zap.Any(key, value))}
}

func (l *ZapLogger) WithFields(fields map[string]interface{}) ILogger {
	zapFields := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zapFields = append(zapFields, zap.Any(k, v))
	}
	return &ZapLogger{logger: l.logger.With(zapFields...)}
}

func (l *ZapLogger) Sync() error { return l.logger.Sync() }

var global ILogger

func init() {
	logger, _ := NewZapLogger("INFO")
	global = logger
}

// SetGlobal replaces the package-level logger used by the convenience
// functions below (Debug/Info/Warn/Error/Fatal), for cmd entrypoints that
// want one logger configured from the loaded config before constructing
// the rest of the engine.
func SetGlobal(logger ILogger) { global = logger }

// Global returns the package-level logger.
func Global() ILogger { return global }

func Debug(msg string, fields ...interface{}) { global.Debug(msg, fields...) }
func Info(msg string, fields ...interface{})  { global.Info(msg, fields...) }
func Warn(msg string, fields ...interface{})  { global.Warn(msg, fields...) }
func Error(msg string, fields ...interface{}) { global.Error(msg, fields...) }
func Fatal(msg string, fields ...interface{}) { global.Fatal(msg, fields...) }
