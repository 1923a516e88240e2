package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a slog logger on stdout at the provided level. Development
// environments get the text handler, everything else JSON. An invalid level
// defaults to info.
func New(level string, dev bool) *slog.Logger {
	return NewWithWriter(os.Stdout, level, dev)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level string, dev bool) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if dev {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}
