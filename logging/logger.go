// Package logging provides the structured logger shared by every provider.
//
// logger.go wraps zap.Logger and redacts secrets (API keys, bearer
// credentials, basic-auth passwords) and shortens base64 data URLs before
// any entry reaches a core.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"spellforge/core"
)

// Options configures New.
type Options struct {
	// Level is the minimum level; the zero value is info.
	Level zapcore.Level

	// Development selects the colored console encoder.
	Development bool

	// FilePath enables a rotating JSON log file when non-empty.
	FilePath string

	// Rotation applies to FilePath; zero fields take the defaults.
	Rotation RotationConfig

	// Console receives console output; defaults to stdout.
	Console zapcore.WriteSyncer
}

// Logger wraps zap.Logger and provides structured logging with automatic
// sensitive data redaction.
//
// Example:
//
//	logger := logging.New(logging.Options{Development: true})
//	defer logger.Sync()
//
//	logger.Info("job submitted", zap.String("task_id", id))
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger
}

// New creates a Logger writing to the console and, optionally, a rotating file.
func New(opts Options) *Logger {
	console := opts.Console
	if console == nil {
		console = zapcore.Lock(os.Stdout)
	}

	var file zapcore.WriteSyncer
	if opts.FilePath != "" {
		file = NewFileWriter(opts.FilePath, opts.Rotation)
	}

	c := NewMultiCore(opts.Level, console, file, opts.Development)
	return wrap(zap.New(c, zap.AddCaller(), zap.AddCallerSkip(1)))
}

// NewFromConfig creates a Logger from LOG_LEVEL, LOG_FILE and DEV_MODE.
func NewFromConfig(cfg *core.Config) *Logger {
	defaultLevel := InfoLevel
	if cfg.DevMode {
		defaultLevel = DebugLevel
	}
	return New(Options{
		Level:       ParseLevel(cfg.LogLevel, defaultLevel),
		Development: cfg.DevMode,
		FilePath:    cfg.LogFile,
		Rotation:    DefaultRotationConfig(),
	})
}

// NewNop returns a Logger that discards everything. Library callers that
// pass a nil *Logger get one of these.
func NewNop() *Logger {
	return wrap(zap.NewNop())
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NewNop()
	}
	return l
}

func wrap(z *zap.Logger) *Logger {
	return &Logger{zap: z, sugar: z.Sugar()}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	return l.zap.Sync()
}

// Debug logs a message at DebugLevel with optional structured fields.
func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

// Info logs a message at InfoLevel with optional structured fields.
func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

// Warn logs a message at WarnLevel with optional structured fields.
func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

// Error logs a message at ErrorLevel with optional structured fields.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// Debugw logs at DebugLevel with loosely-typed key-value pairs.
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, redactKeysAndValues(keysAndValues)...)
}

// Infow logs at InfoLevel with loosely-typed key-value pairs.
func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, redactKeysAndValues(keysAndValues)...)
}

// Warnw logs at WarnLevel with loosely-typed key-value pairs.
func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, redactKeysAndValues(keysAndValues)...)
}

// Errorw logs at ErrorLevel with loosely-typed key-value pairs.
func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, redactKeysAndValues(keysAndValues)...)
}

// With creates a child logger with additional fields that will be included
// in all log entries from the child.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return wrap(l.zap.With(redactFields(fields)...))
}

// Named adds a sub-logger name, e.g. the provider id.
func (l *Logger) Named(name string) *Logger {
	return wrap(l.zap.Named(name))
}

// Zap returns the underlying zap.Logger. Entries written through it bypass
// redaction.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// redactFields filters sensitive data from zap.Field values.
func redactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}

	result := make([]zap.Field, len(fields))
	for i, field := range fields {
		result[i] = redactField(field)
	}
	return result
}

func redactField(field zap.Field) zap.Field {
	if IsSensitiveField(field.Key) {
		return zap.String(field.Key, RedactedPlaceholder)
	}

	switch field.Type {
	case zapcore.StringType:
		if clean := SanitizeValue(field.String); clean != field.String {
			return zap.String(field.Key, clean)
		}
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok && err != nil {
			msg := err.Error()
			if clean := SanitizeValue(msg); clean != msg {
				return zap.String(field.Key, clean)
			}
		}
	}
	return field
}

// redactKeysAndValues filters sensitive data from sugared key-value pairs.
func redactKeysAndValues(keysAndValues []interface{}) []interface{} {
	if len(keysAndValues) == 0 {
		return keysAndValues
	}

	result := make([]interface{}, len(keysAndValues))
	copy(result, keysAndValues)

	for i := 0; i < len(result)-1; i += 2 {
		key, ok := result[i].(string)
		if !ok {
			continue
		}
		if IsSensitiveField(key) {
			result[i+1] = RedactedPlaceholder
			continue
		}
		if value, ok := result[i+1].(string); ok {
			result[i+1] = SanitizeValue(value)
		}
	}
	return result
}
