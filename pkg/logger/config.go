package logger

import (
	"log/slog"
	"strings"
)

// Config is the env-driven logger configuration.
type Config struct {
	Service string `env:"LOG_SERVICE" envDefault:"sessiond"`
	Env     string `env:"APP_ENV" envDefault:"development"`
	Level   string `env:"LOG_LEVEL" envDefault:""`
	Format  string `env:"LOG_FORMAT" envDefault:""`
}

// Options converts the config into factory options. Level and Format, when
// set, override the environment defaults.
func (c Config) Options() []Option {
	opts := []Option{WithEnvironment(c.Env, c.Service)}
	if c.Level != "" {
		opts = append(opts, WithLevel(ParseLevel(c.Level)))
	}
	if c.Format != "" {
		opts = append(opts, WithFormat(Format(strings.ToLower(c.Format))))
	}
	return opts
}

// NewFromConfig builds a logger from Config plus any extra options.
func NewFromConfig(cfg Config, opts ...Option) *slog.Logger {
	return New(append(cfg.Options(), opts...)...)
}

// ParseLevel maps debug, info, warn and error to slog levels. Unknown values yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
