// Package observability holds process-wide logging state.
//
// CLILogger is shared by every command; it defaults to a nop logger so
// packages can log unconditionally before initialization.
package observability

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the process-wide logger for CLI commands.
var CLILogger = zap.NewNop()

// InitCLILogger configures CLILogger from the logging config.
//
// Profile "STRUCTURED" emits JSON (the server default); anything else gets
// a console encoder suitable for terminals.
func InitCLILogger(level, profile string) error {
	log, err := NewLogger(level, profile)
	if err != nil {
		return err
	}
	CLILogger = log
	return nil
}

// NewLogger builds a zap logger for the given level and profile.
func NewLogger(level, profile string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	var cfg zap.Config
	if strings.EqualFold(profile, "STRUCTURED") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}

// Sync flushes any buffered log entries. Safe to call on shutdown.
func Sync() {
	_ = CLILogger.Sync()
}
