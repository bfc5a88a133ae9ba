package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// InitLogger returns a JSON logger at level. Unknown levels fall back to info.
func InitLogger(level string, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stdout
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(output).
		Level(parseLogLevel(level)).
		With().
		Timestamp().
		Caller().
		Logger()
}

func parseLogLevel(level string) zerolog.Level {
	switch l := strings.ToLower(strings.TrimSpace(level)); l {
	case "warning":
		return zerolog.WarnLevel
	case "", "panic", "disabled":
		return zerolog.InfoLevel
	default:
		parsed, err := zerolog.ParseLevel(l)
		if err != nil {
			return zerolog.InfoLevel
		}
		return parsed
	}
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

