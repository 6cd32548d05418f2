package cliconfig

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger zerolog.Logger

func init() {
	logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// Logger returns the CLI logger.
func Logger() zerolog.Logger {
	return logger
}

// LeveledLogger returns the CLI logger filtered at c.LogLevel.
func (c *Config) LeveledLogger() zerolog.Logger {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl).With().Timestamp().Str("service", c.Service).Logger()
}
