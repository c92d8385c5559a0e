// Package logging builds the zerolog loggers used by the command line.
package logging

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options select where log lines go.
type Options struct {
	Level   string    // TRACE, DEBUG, INFO, WARN or ERROR; anything else is INFO
	Console io.Writer // colored console output, nil to disable
	File    io.Writer // plain console-format output, nil to disable
	JSON    bool      // write raw JSON lines to Console instead
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "TRACE":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

// New returns a timestamped logger writing to the configured outputs.
// With no outputs it returns a disabled logger.
func New(opts Options) zerolog.Logger {
	var writers []io.Writer
	if opts.Console != nil {
		if opts.JSON {
			writers = append(writers, opts.Console)
		} else {
			writers = append(writers, zerolog.ConsoleWriter{
				Out:        opts.Console,
				TimeFormat: time.RFC3339,
			})
		}
	}
	if opts.File != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.File,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}
	if len(writers) == 0 {
		return zerolog.Nop()
	}

	return zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(ParseLevel(opts.Level)).
		With().Timestamp().Logger()
}

// LogFilePath builds a log file path for a session started at sessionStart.
func LogFilePath(logsDir, name string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", name, sessionStart.Format("20060102_150405")),
	)
}
