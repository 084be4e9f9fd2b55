package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to w at level. Pretty output uses
// zerolog.ConsoleWriter. Unknown levels fall back to info.
func New(level string, pretty bool, w io.Writer) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	if err != nil {
		logger.Warn().Str("level", level).Msg("unknown log level, using info")
	}
	return logger
}
