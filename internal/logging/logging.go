// Package logging sets up the process-wide zap logger.
package logging

import (
	"io"
	"os"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects log level and destinations.
type Config struct {
	// Level is a zap level name ("debug", "info", "warn", "error").
	Level string
	// File, when set, receives JSON logs rotated by lumberjack.
	File string
	// Output is the console destination; os.Stderr when nil.
	Output io.Writer
	// NoColor disables ANSI level colors on the console.
	NoColor bool
}

// Init builds a logger from cfg and installs it as zap's global logger.
func Init(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		l, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = l
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.NameKey = ""
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.NoColor {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(zapcore.AddSync(out)), level),
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			level,
		))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	zap.ReplaceGlobals(logger)
	return logger, nil
}

// Sync flushes buffered log entries. Errors from syncing a terminal are ignored.
func Sync(l *zap.Logger) {
	_ = l.Sync()
}

// Sink forwards engine progress lines to a zap logger.
type Sink struct {
	L *zap.Logger
}

func NewSink(l *zap.Logger) Sink { return Sink{L: l} }

func (s Sink) Info(msg string)  { s.L.Info(msg) }
func (s Sink) Warn(msg string)  { s.L.Warn(msg) }
func (s Sink) Error(msg string) { s.L.Error(msg) }
