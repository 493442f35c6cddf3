// insurance-portal/pkg/logging/logging.go
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// New returns a JSON logger writing to stderr at the given level.
// Unknown levels fall back to info.
func New(service, level string) *log.Entry {
	return NewWithOutput(service, level, os.Stderr)
}

func NewWithOutput(service, level string, out io.Writer) *log.Entry {
	logger := log.New()
	logger.SetOutput(out)
	logger.SetFormatter(&log.JSONFormatter{})

	lvl, err := log.ParseLevel(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level '%s', defaulting to 'info'\n", level)
		lvl = log.InfoLevel
	}
	logger.SetLevel(lvl)

	return logger.WithField("service", service)
}

// Discard is a logger for tests.
func Discard() *log.Entry {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return log.NewEntry(logger)
}
