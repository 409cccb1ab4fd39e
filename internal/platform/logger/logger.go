package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. Handlers and services log through
// slog so request IDs and entity IDs stay queryable fields.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
