package main

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger returns a structured slog.Logger writing to stdout. format is
// "json" (default) or "text".
func NewLogger(level slog.Leveler, format string) *slog.Logger {
	return newLogger(os.Stdout, level, format)
}

func newLogger(w io.Writer, level slog.Leveler, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
