// Package logging builds the slog loggers used by the engine and the CLI.
//
// Records are rendered by charmbracelet/log, whose Logger implements
// slog.Handler. Every logger carries a "Shotgun" prefix; component loggers
// extend it with the component name so lines read "Shotgun <component>: msg".
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// Prefix is prepended to every log line emitted through this package.
const Prefix = "Shotgun"

// ParseLevel converts a CLI level name into a charmbracelet/log level.
func ParseLevel(name string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "", "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.WarnLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// NewHandler returns the charmbracelet/log logger backing the slog loggers.
func NewHandler(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix: Prefix,
		Level:  level,
	})
}

// New returns a slog.Logger writing to w at the given level.
func New(w io.Writer, level log.Level) *slog.Logger {
	return slog.New(NewHandler(w, level))
}

// Component returns a logger whose prefix names the component, e.g.
// "Shotgun tk-krita". Loggers not backed by charmbracelet/log get a
// "component" attribute instead.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if h, ok := base.Handler().(*log.Logger); ok {
		return slog.New(h.WithPrefix(Prefix + " " + name))
	}
	return base.With("component", name)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
