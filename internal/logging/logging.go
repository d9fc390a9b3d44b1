// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls log level, encoding and sinks.
type Config struct {
	Level  string `koanf:"level"  yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
	// File, when set, receives JSON logs in addition to stderr.
	File string `koanf:"file" yaml:"file"`
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console"}
}

// Validate checks the level and format.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	if c.Format != "json" && c.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Format)
	}
	return nil
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// New builds a logger writing to w (stderr when nil) and, if configured,
// to a log file. The returned close func flushes and closes the file.
func New(cfg Config, w io.Writer) (*zap.Logger, func(), error) {
	if cfg.Level == "" {
		cfg.Level = DefaultConfig().Level
	}
	if cfg.Format == "" {
		cfg.Format = DefaultConfig().Format
	}
	cfg.Format = strings.ToLower(cfg.Format)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	level, _ := zapcore.ParseLevel(cfg.Level)
	if w == nil {
		w = os.Stderr
	}

	cores := []zapcore.Core{zapcore.NewCore(newEncoder(cfg.Format), zapcore.AddSync(w), level)}
	var file *os.File
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(f), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))
	closeFn := func() {
		_ = logger.Sync()
		if file != nil {
			_ = file.Close()
		}
	}
	return logger, closeFn, nil
}
