package introspector

import (
	"io"
	"log/slog"

	"github.com/go-logr/logr"
)

// NewLogger creates a text logger that writes to w and enables V-levels up
// to verbosity.
func NewLogger(w io.Writer, verbosity int) logr.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.Level(-verbosity),
	})

	return logr.FromSlogHandler(handler)
}
