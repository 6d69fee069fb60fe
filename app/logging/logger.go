// Package logging builds the service-wide zap logger
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/amirphl/Orochi-Mail/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a logger writing to stdout, a rotated file, or both
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	sink, err := newSink(cfg)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(newEncoder(cfg.Format), sink, zap.NewAtomicLevelAt(level))

	opts := []zap.Option{zap.ErrorOutput(zapcore.Lock(os.Stderr))}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	return zap.New(core, opts...), nil
}

func newEncoder(format string) zapcore.Encoder {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	if format == "console" {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewJSONEncoder(encCfg)
}

func newSink(cfg config.LoggingConfig) (zapcore.WriteSyncer, error) {
	switch cfg.Output {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "file":
		return zapcore.AddSync(rotatingFile(cfg)), nil
	case "both":
		return zapcore.NewMultiWriteSyncer(zapcore.Lock(os.Stdout), zapcore.AddSync(rotatingFile(cfg))), nil
	default:
		return nil, fmt.Errorf("unsupported log output %q", cfg.Output)
	}
}

func rotatingFile(cfg config.LoggingConfig) io.Writer {
	return &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}
