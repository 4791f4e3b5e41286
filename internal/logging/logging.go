// Package logging builds the process logger: a zap core with optional file
// rotation, exposed to the rest of the code base as a *slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/rickgao/liqwatch/internal/config"
)

// New creates a logger from cfg. The returned function flushes buffered
// entries and should be deferred by the caller.
func New(cfg config.LoggingConfig) (*slog.Logger, func() error, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level: %w", err)
	}

	encoder, err := newEncoder(cfg.Format)
	if err != nil {
		return nil, nil, err
	}

	out, closer := newWriter(cfg)
	core := zapcore.NewCore(encoder, zapcore.AddSync(out), zap.NewAtomicLevelAt(level))
	zl := zap.New(core)

	sync := func() error {
		_ = zl.Sync()
		if closer != nil {
			return closer.Close()
		}
		return nil
	}

	return slog.New(zapslog.NewHandler(zl.Core())), sync, nil
}

func newEncoder(format string) (zapcore.Encoder, error) {
	switch format {
	case "json", "":
		ec := zap.NewProductionEncoderConfig()
		ec.TimeKey = "timestamp"
		ec.MessageKey = "message"
		ec.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// newWriter resolves the output target. Anything other than stdout or
// stderr is a file path rotated by size and age.
func newWriter(cfg config.LoggingConfig) (io.Writer, io.Closer) {
	switch cfg.Output {
	case "stdout", "":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	lj := &lumberjack.Logger{
		Filename: cfg.Output,
		MaxAge:   cfg.MaxAgeDays,
		MaxSize:  cfg.MaxSizeMB,
		Compress: true,
	}
	return lj, lj
}
