// Package zerolog adapts rs/zerolog to the core.Logger interface.
package zerolog

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a configured zerolog root logger. With jsonFormat disabled
// the output goes through a console writer with the given time layout.
func New(level, timeFormat string, colored, jsonFormat bool) (*zerolog.Logger, error) {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zerolog.SetGlobalLevel(logLevel)

	var logger zerolog.Logger
	if jsonFormat {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			NoColor:    !colored,
			TimeFormat: timeFormat,
		}
		logger = zerolog.New(output).With().Timestamp().Logger()
	}

	return &logger, nil
}
