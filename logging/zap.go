package logging

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a zap.Logger to the Logger interface. It emits
// structured JSON, which suits batch runs and the HTTP server.
type ZapLogger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
}

// NewZapLogger creates a production zap logger (JSON to stderr) at level.
func NewZapLogger(level Level) (*ZapLogger, error) {
	atom := zap.NewAtomicLevelAt(toZapLevel(level))

	cfg := zap.NewProductionConfig()
	cfg.Level = atom
	cfg.Sampling = nil

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}

	return &ZapLogger{logger: logger, level: atom}, nil
}

// NewZapLoggerFromCore wraps an existing zap core, mainly for tests that
// observe output.
func NewZapLoggerFromCore(core zapcore.Core, level Level) *ZapLogger {
	atom := zap.NewAtomicLevelAt(toZapLevel(level))
	return &ZapLogger{
		logger: zap.New(core),
		level:  atom,
	}
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

func zapFields(fields []Fields) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	merged := make(Fields)
	for _, f := range fields {
		for k, v := range f {
			merged[k] = v
		}
	}
	out := make([]zap.Field, 0, len(merged))
	for _, k := range sortedKeys(merged) {
		out = append(out, zap.Any(k, merged[k]))
	}
	return out
}

func (z *ZapLogger) enabled(level zapcore.Level) bool {
	return z.level.Enabled(level)
}

func (z *ZapLogger) Debug(msg string, fields ...Fields) {
	if z.enabled(zapcore.DebugLevel) {
		z.logger.Debug(msg, zapFields(fields)...)
	}
}

func (z *ZapLogger) Info(msg string, fields ...Fields) {
	if z.enabled(zapcore.InfoLevel) {
		z.logger.Info(msg, zapFields(fields)...)
	}
}

func (z *ZapLogger) Warn(msg string, fields ...Fields) {
	if z.enabled(zapcore.WarnLevel) {
		z.logger.Warn(msg, zapFields(fields)...)
	}
}

func (z *ZapLogger) Error(err error, msg string, fields ...Fields) {
	if z.enabled(zapcore.ErrorLevel) {
		z.logger.Error(msg, append(zapFields(fields), zap.Error(err))...)
	}
}

func (z *ZapLogger) Fatal(err error, msg string, fields ...Fields) {
	z.logger.Fatal(msg, append(zapFields(fields), zap.Error(err))...)
}

func (z *ZapLogger) WithFields(fields Fields) Logger {
	return &ZapLogger{
		logger: z.logger.With(zapFields([]Fields{fields})...),
		level:  z.level,
	}
}

func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return z.WithFields(fields)
	}
	return z
}

func (z *ZapLogger) SetLevel(level Level) {
	z.level.SetLevel(toZapLevel(level))
}

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error {
	return z.logger.Sync()
}
