package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the zap-backed logging interface shared by every subsystem.
// Session derives a child logger with a dotted source name.
type Logger interface {
	With(...zap.Field) Logger
	Debug(string, ...zap.Field)
	Info(string, ...zap.Field)
	Warn(string, ...zap.Field)
	Error(string, ...zap.Field)
	Fatal(string, ...zap.Field)
	Session(string) Logger
	SessionName() string
}

type logger struct {
	source     string
	origLogger *zap.Logger
	zapLogger  *zap.Logger
	context    []zap.Field
}

// NewLogger returns a new zap logger that implements the Logger interface.
func NewLogger(component string, options ...zap.Option) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.MessageKey = "message"
	encCfg.LevelKey = "log_level"
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.EpochTimeEncoder
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig = encCfg
	origLogger, err := cfg.Build(options...)
	if err != nil {
		origLogger = zap.NewNop()
	}

	return &logger{
		source:     component,
		origLogger: origLogger,
		zapLogger:  origLogger.With(zap.String("source", component)),
	}
}

// NewNopLogger discards everything. Used where no logger was configured.
func NewNopLogger() Logger {
	nop := zap.NewNop()
	return &logger{source: "nop", origLogger: nop, zapLogger: nop}
}

// NewTestLogger builds a Logger over a caller-supplied core, so suites can
// observe emitted entries.
func NewTestLogger(component string, core zapcore.Core) Logger {
	origLogger := zap.New(core)
	return &logger{
		source:     component,
		origLogger: origLogger,
		zapLogger:  origLogger.With(zap.String("source", component)),
	}
}

func (l *logger) Session(component string) Logger {
	newSource := l.source + "." + component
	return &logger{
		source:     newSource,
		origLogger: l.origLogger,
		zapLogger:  l.origLogger.With(zap.String("source", newSource)),
		context:    l.context,
	}
}

func (l *logger) SessionName() string {
	return l.source
}

func (l *logger) With(fields ...zap.Field) Logger {
	return &logger{
		source:     l.source,
		origLogger: l.origLogger,
		zapLogger:  l.zapLogger,
		context:    append(l.context[:len(l.context):len(l.context)], fields...),
	}
}

func (l *logger) wrapDataFields(fields []zap.Field) []zap.Field {
	if len(l.context) == 0 {
		return fields
	}
	finalFields := make([]zap.Field, 0, len(l.context)+len(fields))
	finalFields = append(finalFields, l.context...)
	return append(finalFields, fields...)
}

func (l *logger) Debug(msg string, fields ...zap.Field) {
	l.zapLogger.Debug(msg, l.wrapDataFields(fields)...)
}
func (l *logger) Info(msg string, fields ...zap.Field) {
	l.zapLogger.Info(msg, l.wrapDataFields(fields)...)
}
func (l *logger) Warn(msg string, fields ...zap.Field) {
	l.zapLogger.Warn(msg, l.wrapDataFields(fields)...)
}
func (l *logger) Error(msg string, fields ...zap.Field) {
	l.zapLogger.Error(msg, l.wrapDataFields(fields)...)
}
func (l *logger) Fatal(msg string, fields ...zap.Field) {
	l.zapLogger.Fatal(msg, l.wrapDataFields(fields)...)
}
