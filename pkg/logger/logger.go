package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var (
	// Log is the global logger instance
	Log zerolog.Logger

	level = zerolog.InfoLevel
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339Nano

	// Default to console output with color
	SetOutput(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
	})
}

// SetOutput replaces the writer of the global logger, keeping its level.
func SetOutput(w io.Writer) {
	Log = zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Caller().
		Logger()
}

// UseJSON switches the global logger to plain JSON lines on stdout.
// Used outside of debug mode so log shippers can parse the output.
func UseJSON() {
	SetOutput(os.Stdout)
}

// SetLevel sets the log level
func SetLevel(levelStr string) {
	parsed, err := zerolog.ParseLevel(levelStr)
	if err != nil || levelStr == "" {
		Log.Warn().Str("level", levelStr).Msg("invalid log level, defaulting to info")
		parsed = zerolog.InfoLevel
	}
	level = parsed
	zerolog.SetGlobalLevel(level)
	Log = Log.Level(level)
}

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}
