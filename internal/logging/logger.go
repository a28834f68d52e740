// Package logging provides zap logger helpers.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the shared application logger. It is a Nop logger until InitLogger
// runs so packages can log safely during early startup.
var L = zap.NewNop()

// InitLogger builds the global logger. Development mode is selected with
// FLATWATCH_DEV=1 since logging is initialized before configuration loads.
func InitLogger() {
	logger, err := New(os.Getenv("FLATWATCH_DEV") == "1")
	if err != nil {
		// Nothing sensible to do without a logger; fall back to stderr.
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return
	}
	L = logger
}

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}
