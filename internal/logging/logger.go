package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/orbitlabs/provision/internal/config"
)

// NewLogger creates the structured zerolog.Logger used for the run. Progress
// lines at each stage boundary go to standard output.
func NewLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "provision").
		Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
