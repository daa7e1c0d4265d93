// Package logging builds the zap loggers used by the CLI and tallies the per-element problems
// the loaders report.
package logging

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Counter tallies warnings and errors written through a logger.
type Counter struct {
	warnings atomic.Int64
	errors   atomic.Int64
}

// Hook is a zap entry hook feeding the counter.
func (c *Counter) Hook(e zapcore.Entry) error {
	switch {
	case e.Level == zapcore.WarnLevel:
		c.warnings.Add(1)
	case e.Level >= zapcore.ErrorLevel:
		c.errors.Add(1)
	}
	return nil
}

// Warnings returns the number of warnings seen.
func (c *Counter) Warnings() int64 { return c.warnings.Load() }

// Errors returns the number of errors seen.
func (c *Counter) Errors() int64 { return c.errors.Load() }

// Reset zeroes both tallies.
func (c *Counter) Reset() {
	c.warnings.Store(0)
	c.errors.Store(0)
}

func (c *Counter) String() string {
	return fmt.Sprintf("%d warnings, %d errors", c.Warnings(), c.Errors())
}

// New builds a logger at level. json selects the production encoder; otherwise a console
// encoder without stack traces is used. Every entry also feeds counter when it is non-nil.
func New(level string, json bool, counter *Counter) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	config := zap.NewProductionConfig()
	if !json {
		config = zap.NewDevelopmentConfig()
		config.DisableStacktrace = true
		config.DisableCaller = true
	}
	config.Level = zap.NewAtomicLevelAt(lvl)
	config.OutputPaths = []string{"stderr"}

	var opts []zap.Option
	if counter != nil {
		opts = append(opts, zap.Hooks(counter.Hook))
	}
	logger, err := config.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// OrNop returns log, or a no-op logger when log is nil.
func OrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
