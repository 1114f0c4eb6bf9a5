// Package logger provides structured logging using Zap.
package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Environments understood by Init.
const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvCLI         = "cli"
)

var (
	sugar *zap.SugaredLogger
	once  sync.Once
)

func build(env string) (*zap.Logger, error) {
	switch env {
	case EnvProduction:
		return zap.NewProduction()
	case EnvTest:
		return zap.NewNop(), nil
	case EnvCLI:
		// Reports go to stdout; only problems reach stderr.
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		cfg.DisableStacktrace = true
		cfg.DisableCaller = true
		return cfg.Build()
	default:
		return zap.NewDevelopment()
	}
}

// Init initializes the global logger for the given environment.
// "production" logs JSON, "test" discards everything, "cli" prints warnings
// and errors only. Anything else gets a human-readable development logger.
func Init(env string) {
	once.Do(func() {
		base, err := build(env)
		if err != nil {
			// Fallback to nop logger if initialization fails.
			base = zap.NewNop()
		}

		sugar = base.Sugar()
	})
}

// Get returns the global sugared logger.
// If Init has not been called, it initializes a development logger.
func Get() *zap.SugaredLogger {
	if sugar == nil {
		Init(EnvDevelopment)
	}
	return sugar
}

// Sync flushes any buffered log entries. Call this before application exit.
func Sync() {
	if sugar != nil {
		_ = sugar.Sync()
	}
}
