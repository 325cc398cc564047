// Package logger holds the process-wide zap logger. Each binary calls Init
// once at startup; everything else reaches it through L().
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var base *zap.Logger

// Init builds the logger and installs it as the process global. level is
// any zap level name; format is "json" or "console".
func Init(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "message"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "json":
		enc = zapcore.NewJSONEncoder(encCfg)
	case "console":
		enc = zapcore.NewConsoleEncoder(encCfg)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	l := zap.New(zapcore.NewCore(enc, zapcore.Lock(os.Stdout), lvl), zap.AddCaller())
	base = l
	return l, nil
}

// L returns the process logger. Panics if Init has not run.
func L() *zap.Logger {
	if base == nil {
		panic("logger not initialized: call logger.Init first")
	}
	return base
}

// Sync flushes buffered entries. Safe to call before Init.
func Sync() {
	if base != nil {
		_ = base.Sync()
	}
}
