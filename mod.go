// Package ballot defines the global logger and the list of Prometheus
// collectors shared by the election client packages.
package ballot

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// EnvLogLevel is the name of the environment variable to change the logging
// level.
const EnvLogLevel = "BALLOT_LOG_LEVEL"

const defaultLevel = zerolog.InfoLevel

var logout = zerolog.ConsoleWriter{
	Out:        os.Stdout,
	TimeFormat: time.RFC3339,
}

// Logger is a globally available logger instance. By default, it only prints
// info level and above, which can be changed with the BALLOT_LOG_LEVEL
// environment variable.
var Logger = zerolog.New(logout).Level(levelFromEnv()).
	With().Timestamp().Logger().
	With().Caller().Logger()

// PromCollectors exposes the Prometheus collectors created in the packages.
// The application is responsible for registering them.
var PromCollectors []prometheus.Collector

// SetLevel parses the provided level and applies it to the global logger. An
// unknown level leaves the logger unchanged.
func SetLevel(level string) bool {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return false
	}

	Logger = Logger.Level(lvl)

	return true
}

func levelFromEnv() zerolog.Level {
	lvl, err := zerolog.ParseLevel(os.Getenv(EnvLogLevel))
	if err != nil || os.Getenv(EnvLogLevel) == "" {
		return defaultLevel
	}

	return lvl
}
