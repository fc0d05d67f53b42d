// Package logging builds the application logger. The terminal belongs to the
// UI, so output goes to a file unless stderr is asked for explicitly.
package logging

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ibeckermayer/deepfeed/internal/config"
)

// Stderr can be used as [log].file to log to the terminal, for CLI commands.
const Stderr = "stderr"

// New builds a logger from cfg. An empty file means deepfeed.log in the cache
// directory.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	out := cfg.File
	if out == "" {
		dir, err := config.CacheDir()
		if err != nil {
			return nil, err
		}
		out = filepath.Join(dir, "deepfeed.log")
	}

	zc := zap.NewProductionConfig()
	if out == Stderr {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{out}
	zc.ErrorOutputPaths = []string{out}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
