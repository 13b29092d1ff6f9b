// Package logging configures the structured logger shared by both
// coordinator and replica binaries: JSON output, a per-service field, and
// level parsing with a safe fallback.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger with JSON output to stdout and the given
// level name ("debug", "info", "warn", "error"); an unrecognized or empty
// level falls back to "info".
func New(level, service string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log.WithField("service", service)
}
