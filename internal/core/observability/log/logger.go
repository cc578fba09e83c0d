package log

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var _ Log = (*Logger)(nil)

// Logger is the zap-backed Log implementation.
type Logger struct {
	zapLogger *zap.Logger
	level     zap.AtomicLevel
}

type options struct {
	encoding    string
	outputPaths []string
	development bool
}

// Option tunes the zap configuration built by New.
type Option func(*options)

// WithEncoding selects "json" (default) or "console".
func WithEncoding(encoding string) Option {
	return func(o *options) {
		if encoding != "" {
			o.encoding = encoding
		}
	}
}

// WithOutputPaths overrides the default of stderr.
func WithOutputPaths(paths ...string) Option {
	return func(o *options) {
		if len(paths) > 0 {
			o.outputPaths = paths
		}
	}
}

// WithDevelopment enables zap's development mode (stack traces on warn).
func WithDevelopment(enabled bool) Option {
	return func(o *options) { o.development = enabled }
}

// New builds a logger. It fails when an output path cannot be opened.
func New(level Level, opts ...Option) (*Logger, error) {
	o := options{encoding: "json", outputPaths: []string{"stderr"}}
	for _, opt := range opts {
		opt(&o)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if o.encoding == "console" {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	atomic := zap.NewAtomicLevelAt(toZapLevel(level))
	config := zap.Config{
		Level:       atomic,
		Development: o.development,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         o.encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      o.outputPaths,
		ErrorOutputPaths: []string{"stderr"},
		DisableCaller:    true,
	}

	zapLogger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{zapLogger: zapLogger, level: atomic}, nil
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zapLogger: zap.NewNop(), level: zap.NewAtomicLevelAt(zap.ErrorLevel)}
}

// FromZap wraps an existing zap logger, e.g. zaptest or observer cores in tests.
func FromZap(z *zap.Logger, level Level) *Logger {
	return &Logger{zapLogger: z, level: zap.NewAtomicLevelAt(toZapLevel(level))}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.zapLogger.Sync()
}

func (l *Logger) Log(level Level, msg string, fields ...Field) {
	if !l.level.Enabled(toZapLevel(level)) {
		return
	}
	l.zapLogger.Log(toZapLevel(level), msg, toZapFields(fields...)...)
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.Log(LevelDebug, msg, fields...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.Log(LevelInfo, msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.Log(LevelWarn, msg, fields...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.Log(LevelError, msg, fields...)
}

func (l *Logger) With(fields ...Field) Log {
	return &Logger{
		zapLogger: l.zapLogger.With(toZapFields(fields...)...),
		level:     l.level,
	}
}

type contextFieldsKey struct{}

// ContextWithFields returns a copy of ctx carrying fields in addition to any
// it already carries. WithContext attaches them to a logger.
func ContextWithFields(ctx context.Context, fields ...Field) context.Context {
	prev, _ := ctx.Value(contextFieldsKey{}).([]Field)
	merged := make([]Field, 0, len(prev)+len(fields))
	merged = append(append(merged, prev...), fields...)
	return context.WithValue(ctx, contextFieldsKey{}, merged)
}

// WithContext returns a logger with the fields stored in ctx by ContextWithFields.
func (l *Logger) WithContext(ctx context.Context) Log {
	if ctx == nil {
		return l
	}
	fields, _ := ctx.Value(contextFieldsKey{}).([]Field)
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// SetLevel changes the level for this logger and every logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(toZapLevel(level))
}

func (l *Logger) GetLevel() Level {
	return fromZapLevel(l.level.Level())
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case LevelDebug:
		return zap.DebugLevel
	case LevelInfo:
		return zap.InfoLevel
	case LevelWarn:
		return zap.WarnLevel
	case LevelError:
		return zap.ErrorLevel
	default:
		return zap.InfoLevel
	}
}

func fromZapLevel(level zapcore.Level) Level {
	switch level {
	case zap.DebugLevel:
		return LevelDebug
	case zap.InfoLevel:
		return LevelInfo
	case zap.WarnLevel:
		return LevelWarn
	case zap.ErrorLevel:
		return LevelError
	default:
		return LevelInfo
	}
}

func toZapFields(fields ...Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case BoolType:
			zapFields[i] = zap.Bool(f.Key, f.Value.(bool))
		case DurationType:
			zapFields[i] = zap.Duration(f.Key, f.Value.(time.Duration))
		case Float64Type:
			zapFields[i] = zap.Float64(f.Key, f.Value.(float64))
		case IntType:
			zapFields[i] = zap.Int(f.Key, f.Value.(int))
		case Int64Type:
			zapFields[i] = zap.Int64(f.Key, f.Value.(int64))
		case StringType:
			zapFields[i] = zap.String(f.Key, f.Value.(string))
		case StringsType:
			zapFields[i] = zap.Strings(f.Key, f.Value.([]string))
		case TimeType:
			zapFields[i] = zap.Time(f.Key, f.Value.(time.Time))
		case Uint64Type:
			zapFields[i] = zap.Uint64(f.Key, f.Value.(uint64))
		case ErrorType:
			err, _ := f.Value.(error)
			zapFields[i] = zap.NamedError(f.Key, err)
		default:
			zapFields[i] = zap.Any(f.Key, f.Value)
		}
	}
	return zapFields
}
