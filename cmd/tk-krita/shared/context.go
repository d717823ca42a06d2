// Package shared holds the context passed to all CLI commands.
package shared

import (
	"io"
	"log/slog"

	"github.com/go-ports/tk-krita/internal/config"
	"github.com/go-ports/tk-krita/internal/logging"
	"github.com/go-ports/tk-krita/internal/service"
)

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// Home overrides the engine home directory.
	// When empty, resolution falls through to TK_KRITA_HOME env → persisted config → ~/.tk-krita.
	Home string
	// LogLevel is one of debug, info, warn or error.
	LogLevel string
}

// ResolveHome returns the effective home and where it came from.
func (c *Context) ResolveHome() (home, source string) {
	if c.Home != "" {
		return c.Home, "flag"
	}
	return config.ResolveHome()
}

// Logger returns the process logger writing to w at the configured level.
func (c *Context) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return logging.New(w, level), nil
}

// OpenService opens the service for the effective home, logging to w.
func (c *Context) OpenService(w io.Writer) (*service.Service, error) {
	log, err := c.Logger(w)
	if err != nil {
		return nil, err
	}
	home, _ := c.ResolveHome()
	return service.New(home, log)
}
