package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const serviceName = "disasterwatch-api"

// New writes human-readable logs in development and JSON lines in
// production, where they are shipped to the collector as-is.
func New(environment string) zerolog.Logger {
	return newLogger(os.Stdout, environment)
}

func newLogger(out io.Writer, environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	writer := out
	if environment != "production" {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	level := zerolog.DebugLevel
	if environment == "production" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(writer).Level(level).With().
		Timestamp().
		Str("service", serviceName).
		Str("env", environment).
		Logger()
}
