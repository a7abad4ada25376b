package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Log formats.
const (
	FormatPretty = "pretty"
	FormatJSON   = "json"
)

// Setup builds the portal's stdout logger.
//   - level: trace, debug, info, warn, error (anything else means info)
//   - format: "json" for production, "pretty" for a console
func Setup(level, format string) zerolog.Logger {
	return New(os.Stdout, "portal", level, format)
}

// New builds a logger tagged with app writing to out. Pretty output drops
// colors when out is not a terminal, so redirected CLI logs stay plain.
func New(out io.Writer, app, level, format string) zerolog.Logger {
	writer := out
	if format == FormatPretty {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    !isTerminal(out),
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(writer).
		With().
		Timestamp().
		Str("app", app).
		Caller().
		Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
