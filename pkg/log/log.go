package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects the output format and severity floor.
type Config struct {
	Level  string // debug, info, warn, error
	JSON   bool
	Output io.Writer
}

// The process logger. Until Init runs it discards everything, which
// keeps package construction quiet in tests.
var root = zerolog.Nop()

// Init builds the process logger. Call once at startup, before deriving
// component loggers.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if !cfg.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	root = zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// WithComponent derives a logger tagged with the owning component, so
// every line an engine emits carries its name.
func WithComponent(name string) zerolog.Logger {
	return root.With().Str("component", name).Logger()
}
