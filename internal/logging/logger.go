package logging

import (
	"context"
	"errors"
	"fmt"
	"os"
	"syscall"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const instrumentationName = "github.com/fyrsmithlabs/domainscope"

// Logger is a zap logger whose methods read correlation fields from the
// context.
type Logger struct {
	zap *zap.Logger
	// wrapped reports callers past Logger's own frames.
	wrapped *zap.Logger
}

// New builds a logger from cfg. otelProvider may be nil, in which case
// cfg.Output.OTEL is ignored.
func New(cfg *Config, otelProvider log.LoggerProvider) (*Logger, error) {
	return newLogger(cfg, otelProvider, zapcore.Lock(os.Stdout))
}

func newLogger(cfg *Config, otelProvider log.LoggerProvider, stdout zapcore.WriteSyncer) (*Logger, error) {
	if cfg == nil {
		cfg = NewDefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logging config: %w", err)
	}

	var cores []zapcore.Core
	if cfg.Output.Stdout {
		enc, err := newRedactingEncoder(newEncoder(cfg.Format), cfg.Redaction)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(enc, stdout, cfg.Level))
	}
	if cfg.Output.OTEL && otelProvider != nil {
		otelCore := otelzap.NewCore(instrumentationName, otelzap.WithLoggerProvider(otelProvider))
		cores = append(cores, &levelFilterCore{Core: otelCore, min: cfg.Level})
	}
	if len(cores) == 0 {
		return nil, errors.New("no log output available")
	}

	core := zapcore.NewTee(cores...)
	if cfg.Sampling.Enabled {
		core = newSampledCore(core, cfg.Sampling)
	}

	var opts []zap.Option
	if cfg.Caller {
		opts = append(opts, zap.AddCaller())
	}
	opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))

	z := zap.New(core, opts...)
	for k, v := range cfg.Fields {
		z = z.With(zap.String(k, v))
	}
	return Wrap(z), nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return Wrap(zap.NewNop())
}

// Wrap adapts an existing zap logger. A nil logger yields Nop.
func Wrap(z *zap.Logger) *Logger {
	if z == nil {
		z = zap.NewNop()
	}
	// Skip Logger.log and the level method.
	return &Logger{zap: z, wrapped: z.WithOptions(zap.AddCallerSkip(2))}
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		return zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewJSONEncoder(encCfg)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *Logger) log(ctx context.Context, lvl zapcore.Level, msg string, fields []zap.Field) {
	// Check first so disabled levels skip the context walk.
	ce := l.wrapped.Check(lvl, msg)
	if ce == nil {
		return
	}
	ce.Write(append(ContextFields(ctx), fields...)...)
}

// With returns a child logger that always adds fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	return Wrap(l.zap.With(fields...))
}

// Zap returns the underlying zap logger for libraries that take one.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

// Sync flushes buffered entries. The EINVAL and ENOTTY that Linux returns
// for syncing a terminal are ignored.
func (l *Logger) Sync() error {
	err := l.zap.Sync()
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.EINVAL || errno == syscall.ENOTTY) {
		return nil
	}
	return err
}
