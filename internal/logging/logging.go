// Package logging builds the process-wide hclog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// New returns a root logger. format is "json" or anything else for text.
func New(name, level, format string, out io.Writer) hclog.Logger {
	if out == nil {
		out = os.Stderr
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(normalizeLevel(level)),
		Output:     out,
		JSONFormat: strings.EqualFold(strings.TrimSpace(format), "json"),
	})
}

// Nop returns a logger that discards everything, for tests and optional
// dependencies.
func Nop() hclog.Logger {
	return hclog.NewNullLogger()
}

// OrNop returns logger, or a discarding logger when it is nil.
func OrNop(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "trace", "debug", "info", "warn", "error", "off":
		return level
	case "warning":
		return "warn"
	default:
		return "info"
	}
}
