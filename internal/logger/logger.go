package logger

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

// New builds the process logger. Terminals get the console writer, anything
// else gets JSON lines. verbose lowers the level to debug.
func New(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// NewWithWriter creates a JSON logger on w at debug level; tests use it to
// capture output.
func NewWithWriter(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

// WithContext stores l in ctx.
func WithContext(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or a disabled logger so
// library code never writes to a stream the caller did not choose.
func FromContext(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return zerolog.Nop()
}

// WithFields adds structured fields to a logger.
func WithFields(l zerolog.Logger, fields map[string]any) zerolog.Logger {
	c := l.With()
	for k, v := range fields {
		c = c.Interface(k, v)
	}
	return c.Logger()
}
