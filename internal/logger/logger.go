// Package logger builds the process zap logger and carries per-request
// loggers through contexts.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName is attached to every JSON entry as the "service" field.
const ServiceName = "ragd"

// Options override the environment preset. Empty fields keep the preset.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

type preset struct {
	format string
	level  zapcore.Level
}

var presets = map[string]preset{
	"local":  {format: "console", level: zapcore.DebugLevel},
	"dev":    {format: "console", level: zapcore.DebugLevel},
	"docker": {format: "console", level: zapcore.InfoLevel},
	"prod":   {format: "json", level: zapcore.InfoLevel},
}

// New creates the logger for env (local, dev, docker, prod).
func New(env string, opts Options) (*zap.Logger, error) {
	p, ok := presets[env]
	if !ok {
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if opts.Level != "" {
		if err := p.level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	if opts.Format != "" {
		p.format = opts.Format
	}

	var cfg zap.Config
	switch p.format {
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.InitialFields = map[string]any{"service": ServiceName}
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("invalid log format %q", p.format)
	}
	cfg.Level = zap.NewAtomicLevelAt(p.level)

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}
