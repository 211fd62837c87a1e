package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pevans/confpapers/config"
	"github.com/rs/zerolog"
)

// newLogger creates the process logger. Logs go to w so that tables and
// summaries on stdout stay clean.
func newLogger(level, format string, w io.Writer) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.Nop(), fmt.Errorf("%w: unknown log level %q", config.ErrInvalidSetting, level)
	}

	output := w
	if strings.ToLower(format) == "console" {
		output = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.Kitchen,
		}
	}

	return zerolog.New(output).With().Timestamp().Logger().Level(lvl), nil
}
