// Package logging builds the hclog loggers shared by colortrack components.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Options configures the root logger.
type Options struct {
	// Name is the root logger name.
	Name string

	// Level is an hclog level name (trace, debug, info, warn, error, off).
	Level string

	// Verbose forces debug output, Quiet limits output to errors.
	// Verbose wins when both are set.
	Verbose bool
	Quiet   bool

	// JSON switches to JSON-formatted lines.
	JSON bool

	// Output defaults to stderr.
	Output io.Writer
}

// New creates the root logger for the given options.
func New(opts Options) hclog.Logger {
	output := opts.Output
	if output == nil {
		output = os.Stderr
	}
	name := opts.Name
	if name == "" {
		name = "colortrack"
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      ResolveLevel(opts),
		Output:     output,
		JSONFormat: opts.JSON,
	})
}

// ResolveLevel works out the effective level from the options.
func ResolveLevel(opts Options) hclog.Level {
	switch {
	case opts.Verbose:
		return hclog.Debug
	case opts.Quiet:
		return hclog.Error
	}

	level := hclog.LevelFromString(strings.TrimSpace(opts.Level))
	if level == hclog.NoLevel {
		return hclog.Info
	}
	return level
}

// OrNull returns logger, or a discarding logger when it is nil.
func OrNull(logger hclog.Logger) hclog.Logger {
	if logger == nil {
		return hclog.NewNullLogger()
	}
	return logger
}
